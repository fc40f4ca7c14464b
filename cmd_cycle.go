package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auto_cycle_poster/cycle"
	"auto_cycle_poster/generator"
	"auto_cycle_poster/quotes"
	"auto_cycle_poster/render"
	"auto_cycle_poster/runner"
)

func newPostCycleCmd(a *app) *cobra.Command {
	var (
		engine string
		dry    dryRunFlags
	)
	cmd := &cobra.Command{
		Use:   "post-cycle <prompt>",
		Short: "Post the content for the current cycle slot and advance on success",
		Long: `post-cycle reads the persisted slot (CYCLE_STATE_PATH), posts generated text for
slots 0-8 or an engagement question with a quote image for slot 9, and advances
the slot only when the post was published. Dry runs never advance.`,
		Example: `  cycle-poster post-cycle "daily discipline" --no-dry-run`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := generator.ParseEngine(engine)
			if err != nil {
				return err
			}
			pub, err := a.buildPublisher(dry.resolve(a.cfg.DryRunDefault))
			if err != nil {
				return err
			}
			gen, err := a.buildGenerator()
			if err != nil {
				return err
			}
			tracker, err := cycle.NewTracker(ctx, cycle.NewFileStore(a.cfg.CycleStatePath, a.logger))
			if err != nil {
				return err
			}

			r := &runner.Runner{
				Generator:   gen,
				Publisher:   pub,
				Tracker:     tracker,
				ImageOutDir: a.cfg.ImageOutDir,
				Logger:      a.logger,
			}
			if tracker.IsImageSlot() {
				store, err := quotes.Open(a.cfg.QuotesStorePath)
				if err != nil {
					return err
				}
				rend, err := render.New(a.cfg.Image.Width, a.cfg.Image.Height)
				if err != nil {
					return err
				}
				r.Quotes = store
				r.Renderer = rend
			}

			out, err := r.PostCycle(ctx, args[0], e)
			if out.Text != "" {
				fmt.Fprintln(a.stdout, out.Text)
			}
			if err != nil {
				return err
			}
			a.report(out.Result)
			if out.ImagePath != "" {
				fmt.Fprintf(a.stdout, "Image saved: %s\n", out.ImagePath)
			}
			a.logger.Info("post-cycle done", "slot", out.Slot, "next_slot", out.NextSlot, "advanced", out.Advanced())
			return nil
		},
	}
	engineFlag(cmd, &engine)
	dry.register(cmd)
	return cmd
}
