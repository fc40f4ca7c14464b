package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auto_cycle_poster/generator"
	"auto_cycle_poster/runner"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		engine    string
		maxLength int
	)
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate post text and print it",
		Example: `  cycle-poster generate "stoic resilience"
  cycle-poster generate "focus" --engine ollama --max-length 140`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := generator.ParseEngine(engine)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-length") {
				if maxLength <= 0 {
					return fmt.Errorf("--max-length must be > 0, got %d", maxLength)
				}
				a.cfg.MaxLength = maxLength
			}
			gen, err := a.buildGenerator()
			if err != nil {
				return err
			}
			text, err := gen.Generate(cmd.Context(), args[0], e)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, text)
			return nil
		},
	}
	engineFlag(cmd, &engine)
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "override MAX_LENGTH for this run")
	return cmd
}

func newPostCmd(a *app) *cobra.Command {
	var (
		engine string
		dry    dryRunFlags
	)
	cmd := &cobra.Command{
		Use:   "post <prompt>",
		Short: "Generate post text and publish it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			r := &runner.Runner{Generator: gen, Publisher: pub, Logger: a.logger}
			text, res, err := r.Post(cmd.Context(), args[0], e)
			if text != "" {
				fmt.Fprintln(a.stdout, text)
			}
			if err != nil {
				return err
			}
			a.report(res)
			return nil
		},
	}
	engineFlag(cmd, &engine)
	dry.register(cmd)
	return cmd
}

func newPostTextCmd(a *app) *cobra.Command {
	var dry dryRunFlags
	cmd := &cobra.Command{
		Use:   "post-text <text>",
		Short: "Publish text as-is, without generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := a.buildPublisher(dry.resolve(a.cfg.DryRunDefault))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, args[0])
			res, err := pub.PublishText(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.report(res)
			return nil
		},
	}
	dry.register(cmd)
	return cmd
}
