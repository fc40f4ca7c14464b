package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"auto_cycle_poster/config"
	"auto_cycle_poster/cycle"
	"auto_cycle_poster/generator"
	"auto_cycle_poster/quotes"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check configuration, cycle state and quote pool",
		Long: `health reports whether the posting credentials are set, which generation
engines are configured, the current cycle slot and the quote pool size. It
exits nonzero when posting credentials are missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.buildGenerator()
			if err != nil {
				return err
			}
			h := healthReport{cfg: a.cfg, maxLength: gen.MaxLength()}
			for _, e := range generator.Engines() {
				if e != generator.EngineAuto && gen.Configured(e) {
					h.engines = append(h.engines, string(e))
				}
			}
			if s, err := cycle.NewFileStore(a.cfg.CycleStatePath, a.logger).Load(cmd.Context()); err != nil {
				h.slotErr = err
			} else {
				h.slot = s.Slot
			}
			h.loadQuotes()
			h.render(lipgloss.NewRenderer(a.stdout), a.stdout)

			if missing := a.cfg.MissingTwitter(); len(missing) > 0 {
				return fmt.Errorf("%w: missing %s", config.ErrConfig, strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

type healthReport struct {
	cfg       config.Config
	engines   []string
	maxLength int
	slot      int
	slotErr   error

	quotesExist bool
	quotesErr   error
	count       int
	eligible    int
}

// loadQuotes reads the store without creating it.
func (h *healthReport) loadQuotes() {
	if _, err := os.Stat(h.cfg.QuotesStorePath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.quotesErr = err
		}
		return
	}
	h.quotesExist = true
	store, err := quotes.Open(h.cfg.QuotesStorePath)
	if err != nil {
		h.quotesErr = err
		return
	}
	h.count = store.Count()
	h.eligible = store.Eligible()
}

func (h healthReport) render(r *lipgloss.Renderer, w io.Writer) {
	label := r.NewStyle().Width(14).Foreground(lipgloss.Color("#888888"))
	good := r.NewStyle().Foreground(lipgloss.Color("#5FD75F"))
	bad := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	muted := r.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

	line := func(name, value string) {
		fmt.Fprintln(w, label.Render(name)+" "+value)
	}

	if missing := h.cfg.MissingTwitter(); len(missing) > 0 {
		line("config:", bad.Render("missing: "+strings.Join(missing, ", ")))
	} else {
		line("config:", good.Render("ok"))
	}
	if h.cfg.Twitter.BearerToken != "" {
		line("bearer:", good.Render("set"))
	} else {
		line("bearer:", muted.Render("not set (optional)"))
	}

	if h.cfg.ProviderConfigured() {
		line("provider:", good.Render(h.cfg.Provider.Model)+muted.Render(" @ "+h.cfg.Provider.BaseURL))
	} else {
		line("provider:", muted.Render("not configured"))
	}
	line("ollama:", h.cfg.Ollama.Model+muted.Render(" @ "+h.cfg.Ollama.BaseURL))
	if h.cfg.HF.Model != "" {
		line("hf:", h.cfg.HF.Model+muted.Render(" @ "+h.cfg.HF.BaseURL))
	} else {
		line("hf:", muted.Render("not configured"))
	}
	line("engines:", strings.Join(h.engines, ", "))
	line("max length:", fmt.Sprint(h.maxLength))
	line("dry run:", fmt.Sprintf("%t (default)", h.cfg.DryRunDefault))

	switch {
	case h.slotErr != nil:
		line("cycle:", bad.Render(h.slotErr.Error()))
	case cycle.IsImageSlot(h.slot):
		line("cycle:", fmt.Sprintf("slot %d/%d (image)", h.slot, cycle.Slots-1))
	default:
		line("cycle:", fmt.Sprintf("slot %d/%d", h.slot, cycle.Slots-1))
	}

	switch {
	case h.quotesErr != nil:
		line("quotes:", bad.Render(h.quotesErr.Error()))
	case !h.quotesExist:
		line("quotes:", muted.Render("no store yet, run ingest-csv"))
	case h.eligible == 0:
		line("quotes:", bad.Render(fmt.Sprintf("0 eligible of %d", h.count)))
	default:
		line("quotes:", fmt.Sprintf("%d eligible of %d", h.eligible, h.count))
	}
}
