package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/theirongolddev/opsdash/internal/export"

	"github.com/spf13/cobra"
)

var (
	flagExportOut    string
	flagExportPrefix string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export financial reports and data snapshots",
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Financial report of active customers as CSV",
	RunE:  runExportCSV,
}

var exportJSONCmd = &cobra.Command{
	Use:   "json",
	Short: "Snapshot of every collection and the aggregates as JSON",
	RunE:  runExportJSON,
}

var exportS3Cmd = &cobra.Command{
	Use:   "s3",
	Short: "Upload a JSON snapshot to the configured S3 bucket",
	RunE:  runExportS3,
}

func init() {
	exportCSVCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "Output file (default: stdout)")
	exportJSONCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "Output file (default: stdout)")
	exportS3Cmd.Flags().StringVar(&flagExportPrefix, "prefix", "snapshots", "Object key prefix")

	exportCmd.AddCommand(exportCSVCmd)
	exportCmd.AddCommand(exportJSONCmd)
	exportCmd.AddCommand(exportS3Cmd)
	rootCmd.AddCommand(exportCmd)
}

// writeOut writes to --out, or stdout when it is empty.
func writeOut(fn func(w io.Writer) error) error {
	if flagExportOut == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(flagExportOut) //nolint:gosec // user-chosen output path
	if err != nil {
		return fmt.Errorf("creating %s: %w", flagExportOut, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  Wrote %s\n", flagExportOut)
	return nil
}

func snapshotOf(a *app) export.Snapshot {
	coll, agg := a.st.Snapshot()
	return export.Snapshot{
		ExportedAt:  time.Now().UTC(),
		Source:      string(a.st.Source()),
		Collections: coll,
		Aggregates:  agg,
	}
}

func runExportCSV(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		customers := a.st.Collections().Customers
		return writeOut(func(w io.Writer) error {
			return export.WriteFinancialCSV(w, customers)
		})
	})
}

func runExportJSON(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		snap := snapshotOf(a)
		return writeOut(func(w io.Writer) error {
			return export.WriteSnapshot(w, snap)
		})
	})
}

func runExportS3(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		ec := a.cfg.Export
		up, err := export.NewS3Uploader(ctx, export.S3Config{
			Bucket:    ec.S3Bucket,
			Region:    ec.S3Region,
			Endpoint:  ec.S3Endpoint,
			PathStyle: ec.S3PathStyle,
		})
		if err != nil {
			return err
		}

		key, err := up.UploadSnapshot(ctx, flagExportPrefix, snapshotOf(a))
		if err != nil {
			return err
		}
		fmt.Printf("  Uploaded s3://%s/%s\n", up.Bucket(), key)
		return nil
	})
}
