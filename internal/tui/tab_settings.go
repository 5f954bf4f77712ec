package tui

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/theirongolddev/opsdash/internal/cli"
	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/logging"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/tui/components"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	settingsFieldRemoteURL = iota
	settingsFieldRemoteKey
	settingsFieldTheme
	settingsFieldTaskTimeout
	settingsFieldDaemonInterval
	settingsFieldLogLevel
	settingsFieldS3Bucket
	settingsFieldCount // sentinel
)

// settingsState tracks the settings tab state.
type settingsState struct {
	cursor  int
	editing bool
	input   textinput.Model
	saved   bool  // flash "saved" message
	saveErr error // non-nil if the last edit was rejected or failed to save
}

func newSettingsInput() textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50
	return ti
}

func (a App) settingsStartEdit() (tea.Model, tea.Cmd) {
	a.settings.editing = true
	a.settings.saved = false
	a.settings.saveErr = nil

	ti := newSettingsInput()

	switch a.settings.cursor {
	case settingsFieldRemoteURL:
		ti.Placeholder = "https://project.example.co or postgres://..."
		ti.SetValue(a.cfg.Remote.URL)
	case settingsFieldRemoteKey:
		ti.Placeholder = "access key (leave empty to clear)"
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
		ti.SetValue(a.cfg.Remote.Key)
	case settingsFieldTheme:
		ti.Placeholder = strings.Join(theme.Names(), ", ")
		ti.SetValue(a.cfg.Appearance.Theme)
	case settingsFieldTaskTimeout:
		ti.Placeholder = "30 (seconds)"
		ti.SetValue(strconv.Itoa(int(a.cfg.TaskTimeout().Seconds())))
	case settingsFieldDaemonInterval:
		ti.Placeholder = "60 (seconds, minimum 2)"
		ti.SetValue(strconv.Itoa(int(a.cfg.DaemonInterval().Seconds())))
	case settingsFieldLogLevel:
		ti.Placeholder = "debug, info, warn, error"
		ti.SetValue(a.cfg.Log.Level)
	case settingsFieldS3Bucket:
		ti.Placeholder = "bucket for snapshot uploads (leave empty to clear)"
		ti.SetValue(a.cfg.Export.S3Bucket)
	}

	ti.Focus()
	a.settings.input = ti
	return a, textinput.Blink
}

func (a App) updateSettingsInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.settingsSave()
		a.settings.editing = false
		a.settings.saved = a.settings.saveErr == nil
		return a, nil
	case "esc":
		a.settings.editing = false
		return a, nil
	}

	var cmd tea.Cmd
	a.settings.input, cmd = a.settings.input.Update(msg)
	return a, cmd
}

var errRemoteScheme = errors.New("remote URL must use http, https or postgres")

func validRemoteURL(s string) error {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid remote URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "postgres", "postgresql":
		return nil
	}
	return errRemoteScheme
}

// settingsSave validates the edited value, applies it to the in-memory
// config and writes the config file. Remote and daemon changes take effect
// on the next start.
func (a *App) settingsSave() {
	cfg := a.cfg
	val := strings.TrimSpace(a.settings.input.Value())

	switch a.settings.cursor {
	case settingsFieldRemoteURL:
		if err := validRemoteURL(val); err != nil {
			a.settings.saveErr = err
			return
		}
		cfg.Remote.URL = val
	case settingsFieldRemoteKey:
		cfg.Remote.Key = val
	case settingsFieldTheme:
		if !theme.Valid(val) {
			a.settings.saveErr = fmt.Errorf("unknown theme %q", val)
			return
		}
		cfg.Appearance.Theme = val
		theme.SetActive(val)
	case settingsFieldTaskTimeout:
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			a.settings.saveErr = fmt.Errorf("task timeout must be a positive number of seconds")
			return
		}
		cfg.Sync.TaskTimeoutSec = n
	case settingsFieldDaemonInterval:
		n, err := strconv.Atoi(val)
		if err != nil || n < 2 {
			a.settings.saveErr = fmt.Errorf("interval must be at least 2 seconds")
			return
		}
		cfg.Daemon.IntervalSec = n
	case settingsFieldLogLevel:
		if _, err := logging.ParseLevel(val); err != nil {
			a.settings.saveErr = err
			return
		}
		cfg.Log.Level = strings.ToLower(val)
	case settingsFieldS3Bucket:
		cfg.Export.S3Bucket = val
	}

	if err := config.SaveFile(a.cfgPath, cfg); err != nil {
		a.settings.saveErr = err
		return
	}
	a.cfg = cfg
	a.settings.saveErr = nil
}

func (a App) renderSettingsTab(cw int) string {
	t := theme.Active
	cfg := a.cfg

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selectedStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceBright).Bold(true)
	selectedLabelStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.SurfaceBright).Bold(true)
	accentStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface)
	greenStyle := lipgloss.NewStyle().Foreground(t.GreenBright).Background(t.Surface)
	markerStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceBright)

	type field struct {
		label string
		value string
	}

	notSet := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return s
	}

	fields := []field{
		{"Remote URL", notSet(cfg.Remote.URL)},
		{"Remote Key", notSet(config.MaskKey(cfg.Remote.Key))},
		{"Theme", cfg.Appearance.Theme},
		{"Task Timeout", fmt.Sprintf("%ds", int(cfg.TaskTimeout().Seconds()))},
		{"Daemon Interval", fmt.Sprintf("%ds", int(cfg.DaemonInterval().Seconds()))},
		{"Log Level", cfg.Log.Level},
		{"S3 Bucket", notSet(cfg.Export.S3Bucket)},
	}

	var formBody strings.Builder
	for i, f := range fields {
		if a.settings.editing && i == a.settings.cursor {
			formBody.WriteString(markerStyle.Render("▸ "))
			formBody.WriteString(accentStyle.Render(fmt.Sprintf("%-18s ", f.label)))
			formBody.WriteString(a.settings.input.View())
			formBody.WriteString("\n")
			continue
		}

		if i == a.settings.cursor {
			marker := markerStyle.Render("▸ ")
			label := selectedLabelStyle.Render(fmt.Sprintf("%-18s ", f.label+":"))
			value := selectedStyle.Render(f.value)
			formBody.WriteString(marker)
			formBody.WriteString(label)
			formBody.WriteString(value)
			usedWidth := lipgloss.Width(marker) + lipgloss.Width(label) + lipgloss.Width(value)
			padLen := components.CardInnerWidth(cw) - usedWidth
			if padLen > 0 {
				formBody.WriteString(lipgloss.NewStyle().Background(t.SurfaceBright).Render(strings.Repeat(" ", padLen)))
			}
		} else {
			formBody.WriteString(lipgloss.NewStyle().Background(t.Surface).Render("  "))
			formBody.WriteString(labelStyle.Render(fmt.Sprintf("%-18s ", f.label+":")))
			formBody.WriteString(valueStyle.Render(f.value))
		}
		formBody.WriteString("\n")
	}

	if a.settings.saveErr != nil {
		warnStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
		formBody.WriteString("\n")
		formBody.WriteString(warnStyle.Render(fmt.Sprintf("Not saved: %s", a.settings.saveErr)))
	} else if a.settings.saved {
		formBody.WriteString("\n")
		formBody.WriteString(greenStyle.Render("Saved. Remote and daemon changes apply on next start."))
	}

	formBody.WriteString("\n")
	formBody.WriteString(labelStyle.Render("[j/k] navigate  [Enter] edit  [Esc] cancel"))

	source := string(a.source)
	if source == "" {
		source = "-"
	}

	var infoBody strings.Builder
	infoBody.WriteString(labelStyle.Render("Config file:   ") + valueStyle.Render(a.cfgPath) + "\n")
	infoBody.WriteString(labelStyle.Render("Loaded from:   ") + valueStyle.Render(source) + "\n")
	infoBody.WriteString(labelStyle.Render("Load time:     ") + valueStyle.Render(fmt.Sprintf("%.1fs", a.loadTime.Seconds())) + "\n")
	for _, k := range model.Kinds {
		infoBody.WriteString(labelStyle.Render(fmt.Sprintf("%-15s", string(k)+":")) + valueStyle.Render(cli.FormatNumber(int64(a.coll.Len(k)))) + "\n")
	}

	var b strings.Builder
	b.WriteString(components.ContentCard("Settings", formBody.String(), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("General", strings.TrimRight(infoBody.String(), "\n"), cw))

	return b.String()
}
