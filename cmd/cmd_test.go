package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCustomer(t *testing.T) {
	customers := []model.Customer{
		{ID: "a1b2c3d4-0000", CompanyName: "Acme"},
		{ID: "a1b2ffff-0000", CompanyName: "Globex"},
		{ID: "9999aaaa-0000", CompanyName: "Initech"},
	}

	c, err := findCustomer(customers, "a1b2c3d4-0000")
	require.NoError(t, err)
	assert.Equal(t, "Acme", c.CompanyName)

	c, err = findCustomer(customers, "globex")
	require.NoError(t, err)
	assert.Equal(t, "a1b2ffff-0000", c.ID)

	c, err = findCustomer(customers, "9999")
	require.NoError(t, err)
	assert.Equal(t, "Initech", c.CompanyName)

	_, err = findCustomer(customers, "a1b2")
	assert.ErrorContains(t, err, "matches 2 customers")

	_, err = findCustomer(customers, "Umbrella")
	assert.ErrorIs(t, err, state.ErrUnknownCustomer)

	// Prefixes shorter than four characters never match.
	_, err = findCustomer(customers, "999")
	assert.ErrorIs(t, err, state.ErrUnknownCustomer)
}

func TestFindNote(t *testing.T) {
	notes := []model.Note{{ID: "abc123"}, {ID: "abd456"}, {ID: "xyz789"}}

	i, err := findNote(notes, "xyz")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	i, err = findNote(notes, "abd456")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	_, err = findNote(notes, "ab")
	assert.ErrorContains(t, err, "matches several notes")

	_, err = findNote(notes, "nope")
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"monthly", "quarterly", "yearly"} {
		p, err := parsePeriod(s)
		require.NoError(t, err)
		assert.Equal(t, model.Period(s), p)
	}
	_, err := parsePeriod("weekly")
	assert.Error(t, err)
}

func TestParseNoteType(t *testing.T) {
	typ, err := parseNoteType("TODO")
	require.NoError(t, err)
	assert.Equal(t, model.NoteTodo, typ)

	_, err = parseNoteType("memo")
	assert.Error(t, err)
}

func TestCachePath(t *testing.T) {
	defer func() { flagCacheDB = "" }()

	cfg := config.DefaultConfig()
	cfg.Local.Path = "/tmp/from-config.db"
	assert.Equal(t, "/tmp/from-config.db", cachePath(cfg))

	flagCacheDB = "/tmp/from-flag.db"
	assert.Equal(t, "/tmp/from-flag.db", cachePath(cfg))
}

func TestDaemonConfigFlagsOverrideConfig(t *testing.T) {
	defer func() {
		flagDaemonAddr = ""
		flagDaemonInterval = 0
		flagDaemonEventsBuffer = 0
	}()

	cfg := config.DefaultConfig()
	dc := daemonConfig(cfg)
	assert.Equal(t, "127.0.0.1:8787", dc.Addr)
	assert.Equal(t, 60*time.Second, dc.Interval)
	assert.Equal(t, 200, dc.EventsBuffer)

	flagDaemonAddr = "0.0.0.0:9000"
	flagDaemonInterval = 5 * time.Second
	flagDaemonEventsBuffer = 10
	dc = daemonConfig(cfg)
	assert.Equal(t, "0.0.0.0:9000", dc.Addr)
	assert.Equal(t, 5*time.Second, dc.Interval)
	assert.Equal(t, 10, dc.EventsBuffer)
}

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"daemon", "--detach", "--addr", ":1", "--detach=true"})
	assert.Equal(t, []string{"daemon", "--addr", ":1"}, got)
}

func TestPIDAndStateFiles(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "opsdashd.pid")

	require.NoError(t, writePID(pidFile, 4242))
	pid, err := readPID(pidFile)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	rs := daemonRuntimeState{PID: 4242, Addr: "127.0.0.1:8787", StartedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, writeState(statePath(pidFile), rs))
	got, err := readState(statePath(pidFile))
	require.NoError(t, err)
	assert.Equal(t, rs.Addr, got.Addr)
	assert.True(t, rs.StartedAt.Equal(got.StartedAt))

	require.NoError(t, os.WriteFile(pidFile, []byte("garbage\n"), 0o600))
	_, err = readPID(pidFile)
	assert.Error(t, err)
}

func TestEnsureDaemonNotRunningClearsStalePID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "opsdashd.pid")
	assert.NoError(t, ensureDaemonNotRunning(pidFile))

	require.NoError(t, writePID(pidFile, os.Getpid()))
	assert.ErrorContains(t, ensureDaemonNotRunning(pidFile), "already running")
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, fileExists(dir))
	assert.False(t, fileExists(filepath.Join(dir, "missing.toml")))
}
