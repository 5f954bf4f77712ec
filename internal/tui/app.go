// Package tui provides the interactive Bubble Tea dashboard for opsdash.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"
	"github.com/theirongolddev/opsdash/internal/state"
	"github.com/theirongolddev/opsdash/internal/syncer"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// DataLoadedMsg is sent when the initial load finishes.
type DataLoadedMsg struct {
	Source   syncer.Source
	LoadTime time.Duration
	Err      error
}

// ChangeMsg forwards a state container change to the model.
type ChangeMsg struct {
	Change state.Change
}

// ReconcileMsg is sent when a manual reconcile pass completes.
type ReconcileMsg struct {
	Result syncer.ReconcileResult
	Err    error
}

const (
	tabOverview = iota
	tabCustomers
	tabFinancials
	tabOperations
	tabNotes
	tabSettings
)

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5

	loadTimeout      = 60 * time.Second
	reconcileTimeout = 2 * time.Minute
)

// App is the root Bubble Tea model.
type App struct {
	st      *state.Container
	changes <-chan state.Change
	now     func() time.Time

	// Data
	coll     model.Collections
	agg      model.Aggregates
	source   syncer.Source
	loaded   bool
	loadErr  error
	loadTime time.Duration

	cfg     config.Config
	cfgPath string

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	syncing   bool
	notice    string
	noticeErr bool

	// Per-tab state
	cust     listState
	notes    listState
	fin      financialsState
	settings settingsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *SetupValues
	needSetup bool

	spinner spinner.Model
}

// listState is a cursor over a list.
type listState struct {
	cursor int
}

func (l *listState) clamp(n int) {
	l.cursor = min(l.cursor, n-1)
	l.cursor = max(l.cursor, 0)
}

// NewApp creates the dashboard on top of a state container that has not
// been loaded yet. Settings are written back to cfgPath. needSetup shows
// the first-run form after loading.
func NewApp(st *state.Container, cfg config.Config, cfgPath string, needSetup bool) App {
	theme.SetActive(cfg.Appearance.Theme)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	changes, _ := st.Subscribe(32)

	a := App{
		st:        st,
		changes:   changes,
		now:       time.Now,
		cfg:       cfg,
		cfgPath:   cfgPath,
		needSetup: needSetup,
		fin:       financialsState{period: model.PeriodMonthly},
		spinner:   sp,
	}
	if needSetup {
		a.setupVals = &SetupValues{Theme: cfg.Appearance.Theme}
		a.setupForm = NewSetupForm(a.setupVals)
	}
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		loadCmd(a.st),
		waitForChange(a.changes),
		a.spinner.Tick,
	}
	if a.setupForm != nil {
		cmds = append(cmds, a.setupForm.Init())
	}
	return tea.Batch(cmds...)
}

func loadCmd(st *state.Container) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		start := time.Now()
		src, err := st.Load(ctx)
		return DataLoadedMsg{Source: src, LoadTime: time.Since(start), Err: err}
	}
}

func waitForChange(ch <-chan state.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return ChangeMsg{Change: c}
	}
}

func reconcileCmd(st *state.Container) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		res, err := st.Reconcile(ctx)
		if err == nil {
			st.Refresh()
		}
		return ReconcileMsg{Result: res, Err: err}
	}
}

// refresh copies the current collections and aggregates out of the
// container and clamps cursors to the new list sizes.
func (a *App) refresh() {
	a.coll, a.agg = a.st.Snapshot()
	a.source = a.st.Source()
	a.cust.clamp(len(a.coll.Customers))
	a.notes.clamp(len(a.coll.Notes))
}

func (a *App) setNotice(msg string, err error) {
	if err != nil {
		a.notice = err.Error()
		a.noticeErr = true
		return
	}
	a.notice = msg
	a.noticeErr = false
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case spinner.TickMsg:
		if a.loaded {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case DataLoadedMsg:
		a.loaded = true
		a.loadErr = msg.Err
		a.loadTime = msg.LoadTime
		a.refresh()
		if msg.Err != nil {
			a.setNotice("", msg.Err)
		}
		return a, nil

	case ChangeMsg:
		a.refresh()
		return a, waitForChange(a.changes)

	case ReconcileMsg:
		a.syncing = false
		a.refresh()
		switch {
		case msg.Err != nil:
			a.setNotice("", msg.Err)
		case msg.Result.Skipped:
			a.setNotice("remote unavailable, changes kept locally", nil)
		default:
			a.setNotice(fmt.Sprintf("reconciled: %d pushed, %d deleted", msg.Result.Pushed, msg.Result.Deleted), nil)
		}
		return a, nil

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.loaded || a.showHelp || (a.needSetup && a.setupForm != nil) {
		return a, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		a.moveCursor(-1)
	case tea.MouseButtonWheelDown:
		a.moveCursor(1)
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
	}
	return a, nil
}

func (a *App) moveCursor(delta int) {
	switch a.activeTab {
	case tabCustomers:
		a.cust.cursor += delta
		a.cust.clamp(len(a.coll.Customers))
	case tabNotes:
		a.notes.cursor += delta
		a.notes.clamp(len(a.coll.Notes))
	case tabSettings:
		a.settings.cursor = min(max(a.settings.cursor+delta, 0), settingsFieldCount-1)
	}
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}

	// First-run setup form intercepts all keys
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if a.activeTab == tabSettings && a.settings.editing {
		return a.updateSettingsInput(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "left", "shift+tab":
		a.activeTab = (a.activeTab + len(components.Tabs) - 1) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	case "j", "down":
		a.moveCursor(1)
		return a, nil
	case "k", "up":
		a.moveCursor(-1)
		return a, nil
	case "r":
		if a.syncing {
			return a, nil
		}
		a.syncing = true
		a.setNotice("reconciling...", nil)
		return a, reconcileCmd(a.st)
	}

	switch a.activeTab {
	case tabCustomers:
		if key == "m" {
			a.toggleMaintenance()
			return a, nil
		}
	case tabFinancials:
		if key == "p" {
			a.fin.period = nextPeriod(a.fin.period)
			return a, nil
		}
	case tabNotes:
		switch key {
		case " ", "enter":
			a.toggleNote()
			return a, nil
		case "d":
			a.deleteNote()
			return a, nil
		}
	case tabSettings:
		if key == "enter" {
			return a.settingsStartEdit()
		}
	}

	if len(msg.Runes) == 1 {
		if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

// toggleMaintenance flips this month's maintenance payment for the
// selected customer.
func (a *App) toggleMaintenance() {
	if len(a.coll.Customers) == 0 {
		return
	}
	c := a.coll.Customers[a.cust.cursor]
	month := pipeline.MonthKey(a.now())
	paid, err := a.st.ToggleMaintenancePaid(c.ID, month)
	if err != nil {
		a.setNotice("", err)
		return
	}
	a.refresh()
	if paid {
		a.setNotice(fmt.Sprintf("%s: maintenance paid for %s", c.CompanyName, month), nil)
	} else {
		a.setNotice(fmt.Sprintf("%s: maintenance unpaid for %s", c.CompanyName, month), nil)
	}
}

func (a *App) toggleNote() {
	if len(a.coll.Notes) == 0 {
		return
	}
	notes := append([]model.Note(nil), a.coll.Notes...)
	notes[a.notes.cursor].Completed = !notes[a.notes.cursor].Completed
	if err := a.st.SetNotes(notes); err != nil {
		a.setNotice("", err)
		return
	}
	a.refresh()
}

func (a *App) deleteNote() {
	if len(a.coll.Notes) == 0 {
		return
	}
	i := a.notes.cursor
	notes := append([]model.Note(nil), a.coll.Notes[:i]...)
	notes = append(notes, a.coll.Notes[i+1:]...)
	if err := a.st.SetNotes(notes); err != nil {
		a.setNotice("", err)
		return
	}
	a.refresh()
	a.setNotice("note deleted", nil)
}

func nextPeriod(p model.Period) model.Period {
	switch p {
	case model.PeriodMonthly:
		return model.PeriodQuarterly
	case model.PeriodQuarterly:
		return model.PeriodYearly
	default:
		return model.PeriodMonthly
	}
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  opsdash needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ opsdash"))
	b.WriteString(subtitleStyle.Render(" · Operations Dashboard"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	b.WriteString(subtitleStyle.Render(" Loading collections..."))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings [][2]string
	}{
		{"Navigation", [][2]string{
			{"o c f a n x", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"j k", "Move selection"},
		}},
		{"Actions", [][2]string{
			{"m", "Toggle this month's maintenance payment"},
			{"p", "Cycle financial period"},
			{"Space", "Complete / reopen note"},
			{"d", "Delete note"},
			{"Enter", "Edit setting"},
			{"r", "Reconcile with remote store"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(s.title))
		b.WriteString("\n")
		for _, bind := range s.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-12s", bind[0])),
				descStyle.Render(bind[1]))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()

	header := components.RenderTabBar(a.activeTab, w)
	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		Source:  string(a.source),
		Syncing: a.syncing,
		Notice:  a.notice,
		IsError: a.noticeErr,
	})

	contentH := max(a.height-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch a.activeTab {
	case tabOverview:
		content = a.renderOverviewTab(cw)
	case tabCustomers:
		content = a.renderCustomersTab(cw, contentH)
	case tabFinancials:
		content = a.renderFinancialsTab(cw)
	case tabOperations:
		content = a.renderOperationsTab(cw)
	case tabNotes:
		content = a.renderNotesTab(cw, contentH)
	case tabSettings:
		content = a.renderSettingsTab(cw)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, a.height, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Helpers ────────────────────────────────────────────────────

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // one column separator
	}
	return -1
}
