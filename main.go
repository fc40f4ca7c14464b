package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"auto_cycle_poster/config"
	"auto_cycle_poster/generator"
	"auto_cycle_poster/logs"
	"auto_cycle_poster/publisher"
	"auto_cycle_poster/quotes"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitEmptyPool = 2
)

// app carries what every command needs once the root command has loaded config.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	verbose bool

	stdout io.Writer
	stderr io.Writer
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	err := newRootCmd(a).ExecuteContext(context.Background())
	code := exitCode(err)
	if err != nil {
		logger := a.logger
		if logger == nil {
			logger = logs.New(os.Stderr, slog.LevelInfo)
		}
		if code == exitEmptyPool {
			logger.Error("quote pool is empty, run ingest-csv with new quotes or reset-quotes", "error", err)
		} else {
			logger.Error("command failed", "error", err)
		}
	}
	os.Exit(code)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cycle-poster",
		Short: "Scheduled bot that generates and posts short text on a 10-slot cycle",
		Long: `cycle-poster generates short posts with a pluggable language-model backend
and publishes them to X/Twitter. Each post-cycle run handles one slot: slots 0-8
post text, slot 9 posts an engagement question with a rendered quote image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(
		newHealthCmd(a),
		newGenerateCmd(a),
		newPostCmd(a),
		newPostTextCmd(a),
		newPostCycleCmd(a),
		newIngestCSVCmd(a),
		newResetQuotesCmd(a),
		newPostStoicCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	level := logs.ParseLevel(cfg.LogLevel)
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = logs.New(a.stderr, level)
	slog.SetDefault(a.logger)
	return nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, quotes.ErrNoEligibleQuote):
		return exitEmptyPool
	default:
		return exitFailure
	}
}

// dryRunFlags adds --dry-run/--no-dry-run to cmd.
type dryRunFlags struct {
	dryRun   bool
	noDryRun bool
}

func (f *dryRunFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "log instead of posting")
	cmd.Flags().BoolVar(&f.noDryRun, "no-dry-run", false, "post for real (overrides --dry-run and DRY_RUN_DEFAULT)")
}

// resolve applies --no-dry-run, then --dry-run, then the configured default.
func (f dryRunFlags) resolve(def bool) bool {
	switch {
	case f.noDryRun:
		return false
	case f.dryRun:
		return true
	default:
		return def
	}
}

func (a *app) buildGenerator() (*generator.Generator, error) {
	opts := generator.Options{
		Fallback:  generator.Fallback{Suffix: a.cfg.Prompts.Fallback},
		MaxLength: a.cfg.MaxLength,
		Prompts: generator.Prompts{
			System:   a.cfg.Prompts.System,
			Question: a.cfg.Prompts.Question,
		},
		Logger: a.logger,
	}
	maxTokens := generator.CompletionTokens(a.cfg.MaxLength)

	if a.cfg.ProviderConfigured() {
		llm, err := generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider:  string(generator.EngineProvider),
			Model:     a.cfg.Provider.Model,
			APIKey:    a.cfg.Provider.APIKey,
			BaseURL:   a.cfg.Provider.BaseURL,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, err
		}
		opts.Provider = llm
	}

	// Ollama 总是可用（本地服务），未启动时在 auto 模式下被跳过。
	ollama, err := generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
		Provider:  string(generator.EngineOllama),
		Model:     a.cfg.Ollama.Model,
		BaseURL:   a.cfg.Ollama.BaseURL,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}
	opts.Ollama = ollama

	if a.cfg.HF.Model != "" {
		hf, err := generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider:  string(generator.EngineHF),
			Model:     a.cfg.HF.Model,
			APIKey:    a.cfg.HF.APIKey,
			BaseURL:   a.cfg.HF.BaseURL,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, err
		}
		opts.HF = hf
	}
	return generator.New(opts), nil
}

func (a *app) buildPublisher(dryRun bool) (*publisher.Publisher, error) {
	if !dryRun {
		if err := a.cfg.RequireTwitter(); err != nil {
			return nil, err
		}
	}
	return publisher.New(publisher.Credentials{
		APIKey:            a.cfg.Twitter.APIKey,
		APIKeySecret:      a.cfg.Twitter.APIKeySecret,
		AccessToken:       a.cfg.Twitter.AccessToken,
		AccessTokenSecret: a.cfg.Twitter.AccessTokenSecret,
	}, nil, dryRun, a.logger)
}

// report prints the post outcome the way operators read it in cron mail.
func (a *app) report(res publisher.PostResult) {
	switch {
	case res.DryRun:
		fmt.Fprintln(a.stdout, "[dry-run] Skipping post.")
	case res.Posted:
		fmt.Fprintf(a.stdout, "Posted tweet id: %s\n", res.ID)
	}
}

func engineFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "engine", string(generator.EngineAuto), "generation engine: auto|provider|ollama|hf|fallback")
}
