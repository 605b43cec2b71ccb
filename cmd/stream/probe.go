package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oliverames/ames-consulting/filter"
	"github.com/oliverames/ames-consulting/journal"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run the pipeline once and journal the result",
	Long: `Fetches from the configured provider (and the local fallback, if needed),
records every attempt in the journal and prints a one-line status.
Exits non-zero when no source produced any post.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := journal.New(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer store.Close()

		listing, err := probe(cmd.Context(), cfg, store, logger)
		status := filter.NewStatus(len(listing.Posts), filter.State{}, listing.Provider, listing.Degraded)
		fmt.Fprintln(cmd.OutOrStdout(), status.String())
		return err
	},
}
