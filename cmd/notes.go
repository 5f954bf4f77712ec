package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/state"

	"github.com/spf13/cobra"
)

var (
	flagNoteType string
	flagNotesAll bool
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List open notes, todos and reminders",
	RunE:  runNotes,
}

var noteAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a note",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNoteAdd,
}

var noteDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a note completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteDone,
}

var noteRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	RunE:    runNoteRemove,
}

func init() {
	notesCmd.Flags().BoolVarP(&flagNotesAll, "all", "a", false, "Include completed notes")
	noteAddCmd.Flags().StringVarP(&flagNoteType, "type", "t", string(model.NoteNote), "Type: note, todo, reminder")

	notesCmd.AddCommand(noteAddCmd)
	notesCmd.AddCommand(noteDoneCmd)
	notesCmd.AddCommand(noteRemoveCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotes(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, a *app) error {
		var rows [][]string
		for _, n := range a.st.Collections().Notes {
			if n.Completed && !flagNotesAll {
				continue
			}
			done := ""
			if n.Completed {
				done = "✓"
			}
			rows = append(rows, []string{shortID(n.ID), string(n.Type), n.Date, n.Content, done})
		}
		if len(rows) == 0 {
			fmt.Println("\n  Nothing open.")
			return nil
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:    "Notes",
			Headers:  []string{"ID", "Type", "Date", "Content", "Done"},
			Rows:     rows,
			LeftCols: map[int]bool{1: true, 2: true, 3: true},
		}))
		return nil
	})
}

func parseNoteType(s string) (model.NoteType, error) {
	switch t := model.NoteType(strings.ToLower(s)); t {
	case model.NoteNote, model.NoteTodo, model.NoteReminder:
		return t, nil
	}
	return "", fmt.Errorf("unknown note type %q", s)
}

func runNoteAdd(_ *cobra.Command, args []string) error {
	typ, err := parseNoteType(flagNoteType)
	if err != nil {
		return err
	}
	return withApp(func(_ context.Context, a *app) error {
		n := model.Note{
			ID:      state.NewID(),
			Content: strings.Join(args, " "),
			Type:    typ,
			Date:    time.Now().Format(time.DateOnly),
		}
		notes := append([]model.Note{n}, a.st.Collections().Notes...)
		if err := a.st.SetNotes(notes); err != nil {
			return err
		}
		fmt.Printf("  Added %s %s\n", typ, shortID(n.ID))
		return nil
	})
}

// findNote returns the index of the note whose id equals or starts with ref.
func findNote(notes []model.Note, ref string) (int, error) {
	found := -1
	for i, n := range notes {
		if n.ID == ref {
			return i, nil
		}
		if strings.HasPrefix(n.ID, ref) {
			if found >= 0 {
				return -1, fmt.Errorf("%q matches several notes", ref)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("no note %q", ref)
	}
	return found, nil
}

func runNoteDone(_ *cobra.Command, args []string) error {
	return withApp(func(_ context.Context, a *app) error {
		notes := a.st.Collections().Notes
		i, err := findNote(notes, args[0])
		if err != nil {
			return err
		}
		notes[i].Completed = true
		return a.st.SetNotes(notes)
	})
}

func runNoteRemove(_ *cobra.Command, args []string) error {
	return withApp(func(_ context.Context, a *app) error {
		notes := a.st.Collections().Notes
		i, err := findNote(notes, args[0])
		if err != nil {
			return err
		}
		if err := a.st.SetNotes(append(notes[:i], notes[i+1:]...)); err != nil {
			return err
		}
		fmt.Printf("  Removed note %s\n", shortID(args[0]))
		return nil
	})
}
