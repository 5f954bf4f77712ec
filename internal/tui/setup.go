package tui

import (
	"strings"

	"github.com/theirongolddev/opsdash/internal/config"
	"github.com/theirongolddev/opsdash/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers collected by the setup form.
type SetupValues struct {
	RemoteURL string
	RemoteKey string
	Theme     string
}

// NewSetupForm builds the setup form writing into v. The form is shared by
// the dashboard's first run and the standalone setup command.
func NewSetupForm(v *SetupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}
	if v.Theme == "" {
		v.Theme = theme.FlexokiDark.Name
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to opsdash").
				Description("Everything works offline against the local cache.\nConnect a remote store to keep several machines in sync."),
			huh.NewInput().
				Title("Remote URL").
				Description("PostgREST endpoint (https://...) or postgres:// URL. Leave empty to stay offline.").
				Value(&v.RemoteURL).
				Validate(func(s string) error { return validRemoteURL(strings.TrimSpace(s)) }),
			huh.NewInput().
				Title("Access key").
				EchoMode(huh.EchoModePassword).
				Value(&v.RemoteKey),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.Theme),
		),
	).WithTheme(huh.ThemeCharm())
}

// ApplySetup copies non-empty answers onto cfg.
func ApplySetup(cfg config.Config, v SetupValues) config.Config {
	if s := strings.TrimSpace(v.RemoteURL); s != "" {
		cfg.Remote.URL = s
	}
	if s := strings.TrimSpace(v.RemoteKey); s != "" {
		cfg.Remote.Key = s
	}
	if theme.Valid(v.Theme) {
		cfg.Appearance.Theme = strings.TrimSpace(v.Theme)
	}
	return cfg
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.cfg = ApplySetup(a.cfg, *a.setupVals)
		theme.SetActive(a.cfg.Appearance.Theme)
		if err := config.SaveFile(a.cfgPath, a.cfg); err != nil {
			a.setNotice("", err)
		} else if a.cfg.RemoteConfigured() {
			a.setNotice("config saved; restart to connect the remote store", nil)
		} else {
			a.setNotice("config saved", nil)
		}
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}

	return a, cmd
}
