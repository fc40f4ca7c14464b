package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auto_cycle_poster/generator"
	"auto_cycle_poster/quotes"
)

func newIngestCSVCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest-csv <path>",
		Short: "Add quotes from a CSV batch to the quote store",
		Long: `ingest-csv reads a CSV file with a text (or quote) column and optional author
and theme columns, or plain rows where the first column is the quote, and adds
every new quote to QUOTES_STORE_PATH. Duplicates are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := quotes.Open(a.cfg.QuotesStorePath)
			if err != nil {
				return err
			}
			res, err := store.IngestCSV(args[0], source)
			if err != nil {
				return err
			}
			a.logger.Info("quotes ingested", "path", args[0], "added", res.Added, "duplicates", res.Duplicates)
			fmt.Fprintf(a.stdout, "Added %d quotes (%d duplicates skipped, %d eligible of %d)\n",
				res.Added, res.Duplicates, store.Eligible(), store.Count())
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source label stored with each quote (default: file name)")
	return cmd
}

func newResetQuotesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-quotes",
		Short: "Make every posted quote eligible again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := quotes.Open(a.cfg.QuotesStorePath)
			if err != nil {
				return err
			}
			n, err := store.Reset()
			if err != nil {
				return err
			}
			a.logger.Info("quote pool reset", "path", store.Path(), "reset", n)
			fmt.Fprintf(a.stdout, "Reset %d quotes, %d eligible\n", n, store.Eligible())
			return nil
		},
	}
}

func newPostStoicCmd(a *app) *cobra.Command {
	var dry dryRunFlags
	cmd := &cobra.Command{
		Use:   "post-stoic",
		Short: "Fetch a stoic quote from the public API and post it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := a.buildPublisher(dry.resolve(a.cfg.DryRunDefault))
			if err != nil {
				return err
			}
			row, err := quotes.NewStoicClient(nil).Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch stoic quote: %w", err)
			}
			text := generator.Truncate(row.Format(), a.cfg.MaxLength)
			fmt.Fprintln(a.stdout, text)
			res, err := pub.PublishText(cmd.Context(), text)
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
