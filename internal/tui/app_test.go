package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/metrics"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/remote"
	"github.com/theirongolddev/opsdash/internal/state"
	"github.com/theirongolddev/opsdash/internal/store"
	"github.com/theirongolddev/opsdash/internal/syncer"
)

func init() {
	lipgloss.SetColorProfile(termenv.TrueColor)
}

var testNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

// newTestApp returns a loaded, sized dashboard over a local-only container.
func newTestApp(t *testing.T) (App, *state.Container) {
	t.Helper()
	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	o := syncer.New(cache, remote.Disabled{}, nil, metrics.New())
	st := state.New(o, state.Options{Now: func() time.Time { return testNow }})
	t.Cleanup(st.Close)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	a := NewApp(st, config.DefaultConfig(), cfgPath, false)
	a.now = func() time.Time { return testNow }

	src, err := st.Load(context.Background())
	require.NoError(t, err)
	a = update(t, a, DataLoadedMsg{Source: src})
	a = update(t, a, tea.WindowSizeMsg{Width: 140, Height: 45})
	return a, st
}

func update(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	next, ok := m.(App)
	require.True(t, ok)
	return next
}

func press(t *testing.T, a App, key string) App {
	t.Helper()
	switch key {
	case "enter":
		return update(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return update(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	case " ":
		return update(t, a, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	}
	return update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	names := []string{"Overview", "Customers", "Financials", "Operations", "Notes", "Settings"}
	keyOutsideName := map[int]bool{3: true, 5: true}

	for active := range names {
		a := App{activeTab: active}
		pos := 0
		for i, name := range names {
			w := len(name) + 2
			if i != active && keyOutsideName[i] {
				w += 3 // "[k]"
			}
			x := pos + w/2
			assert.Equal(t, i, a.tabAtX(x), "active=%d x=%d", active, x)
			pos += w + 1
		}
		assert.Equal(t, -1, a.tabAtX(pos+50))
	}
}

func TestTabKeysSwitchTabs(t *testing.T) {
	a, _ := newTestApp(t)

	a = press(t, a, "f")
	assert.Equal(t, tabFinancials, a.activeTab)
	a = press(t, a, "x")
	assert.Equal(t, tabSettings, a.activeTab)
	a = update(t, a, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabOverview, a.activeTab)
	a = update(t, a, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, tabSettings, a.activeTab)
}

func TestMouseClickSelectsTab(t *testing.T) {
	a, _ := newTestApp(t)
	x := len(" Overview ") + 1 + 2 // inside "Customers"
	a = update(t, a, tea.MouseMsg{X: x, Y: 0, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	assert.Equal(t, tabCustomers, a.activeTab)
}

func TestToggleMaintenanceFromCustomersTab(t *testing.T) {
	a, st := newTestApp(t)
	require.NoError(t, st.SetCustomers([]model.Customer{{
		ID:                 "c1",
		CompanyName:        "Acme",
		Status:             model.StatusActive,
		Maintenance:        true,
		MonthlyRevenue:     500,
		MaintenancePayment: model.PaymentInfo{EstimatedCost: 200},
	}}))
	a.refresh()

	a = press(t, a, "c")
	a = press(t, a, "m")

	cust := st.Collections().Customers
	require.Len(t, cust, 1)
	assert.True(t, cust[0].PaidMonth("2026-03"))
	assert.False(t, a.noticeErr)
	assert.Contains(t, a.notice, "maintenance paid")
	require.Len(t, a.coll.PaymentHistory, 1)
	assert.InDelta(t, 200, a.coll.PaymentHistory[0].Amount, 1e-9)

	a = press(t, a, "m")
	assert.False(t, st.Collections().Customers[0].PaidMonth("2026-03"))
	assert.Contains(t, a.notice, "unpaid")
}

func TestNotesToggleAndDelete(t *testing.T) {
	a, st := newTestApp(t)
	require.NoError(t, st.SetNotes([]model.Note{
		{ID: "n1", Content: "call Acme", Type: model.NoteTodo, Date: "2026-03-01"},
		{ID: "n2", Content: "renew domain", Type: model.NoteReminder, Date: "2026-03-02"},
	}))
	a.refresh()

	a = press(t, a, "n")
	a = press(t, a, "j")
	assert.Equal(t, 1, a.notes.cursor)
	a = press(t, a, " ")
	assert.True(t, st.Collections().Notes[1].Completed)

	a = press(t, a, "d")
	notes := st.Collections().Notes
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
	assert.Equal(t, 0, a.notes.cursor)
}

func TestFinancialPeriodCycles(t *testing.T) {
	a, _ := newTestApp(t)
	a = press(t, a, "f")
	assert.Equal(t, model.PeriodMonthly, a.fin.period)
	a = press(t, a, "p")
	assert.Equal(t, model.PeriodQuarterly, a.fin.period)
	a = press(t, a, "p")
	assert.Equal(t, model.PeriodYearly, a.fin.period)
	a = press(t, a, "p")
	assert.Equal(t, model.PeriodMonthly, a.fin.period)
}

func TestViewFillsTerminalOnEveryTab(t *testing.T) {
	a, st := newTestApp(t)
	require.NoError(t, st.Seed())
	a.refresh()

	for i := range 6 {
		a.activeTab = i
		view := a.View()
		assert.Equal(t, 45, lipgloss.Height(view), "tab %d", i)
		assert.Contains(t, ansi.Strip(view), "offline", "tab %d", i)
	}

	a.width = 60
	assert.Contains(t, ansi.Strip(a.View()), "too narrow")
}

func TestSettingsRejectsUnknownTheme(t *testing.T) {
	a, _ := newTestApp(t)
	a = press(t, a, "x")
	a.settings.cursor = settingsFieldTheme
	a = press(t, a, "enter")
	require.True(t, a.settings.editing)

	a.settings.input.SetValue("no-such-theme")
	a = press(t, a, "enter")
	assert.False(t, a.settings.editing)
	require.Error(t, a.settings.saveErr)
	assert.Equal(t, "flexoki-dark", a.cfg.Appearance.Theme)
}

func TestSettingsSavesInterval(t *testing.T) {
	a, _ := newTestApp(t)
	a = press(t, a, "x")
	a.settings.cursor = settingsFieldDaemonInterval
	a = press(t, a, "enter")
	a.settings.input.SetValue("15")
	a = press(t, a, "enter")

	require.NoError(t, a.settings.saveErr)
	assert.True(t, a.settings.saved)

	cfg, err := config.LoadFile(a.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Daemon.IntervalSec)
}

func TestValidRemoteURL(t *testing.T) {
	require.NoError(t, validRemoteURL(""))
	require.NoError(t, validRemoteURL("https://db.example.co"))
	require.NoError(t, validRemoteURL("postgres://u:p@localhost/ops"))
	require.ErrorIs(t, validRemoteURL("ftp://files.example.co"), errRemoteScheme)
}

func TestApplySetupKeepsExistingOnEmptyAnswers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Remote.URL = "https://old.example.co"

	out := ApplySetup(cfg, SetupValues{RemoteKey: " secret ", Theme: "tokyo-night"})
	assert.Equal(t, "https://old.example.co", out.Remote.URL)
	assert.Equal(t, "secret", out.Remote.Key)
	assert.Equal(t, "tokyo-night", out.Appearance.Theme)

	out = ApplySetup(cfg, SetupValues{Theme: "bogus"})
	assert.Equal(t, "flexoki-dark", out.Appearance.Theme)
}

func TestTruncStr(t *testing.T) {
	assert.Equal(t, "abc", truncStr("abc", 5))
	assert.Equal(t, "ab…", truncStr("abcdef", 3))
	assert.Empty(t, truncStr("abc", 0))
	assert.Equal(t, 3, len(strings.Split(padHeight("a", 3), "\n")))
}
