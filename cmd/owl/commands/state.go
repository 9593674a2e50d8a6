package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/owlconfig/owl/pkg/stores"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const timestampFormat = "2006-01-02 15:04:05"

func newStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and prune recorded host state",
		Long: `Inspect the state database: which packages are recorded for a host,
which runs touched it, and prune old runs.

Runs are recorded by commands such as "owl plan --save"; an executor
records package state after applying a plan.`,
	}

	cmd.AddCommand(newStateListCommand())
	cmd.AddCommand(newStateRunsCommand())
	cmd.AddCommand(newStatePruneCommand())

	return cmd
}

func newStateListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded packages for a host",
		Example: `  # Packages recorded for this machine
  owl state list

  # Packages recorded for another host
  owl state list --host workstation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("host", hostName).
				Msg("Listing recorded packages")

			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListPackageRecords(ctx, hostName)
			if err != nil {
				return fmt.Errorf("failed to list package records: %w", err)
			}

			if len(records) == 0 {
				fmt.Printf("No packages recorded for host %s\n", hostName)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tSOURCE\tHASH\tAPPLIED")
			for _, rec := range records {
				source := rec.SourceKind
				if rec.GroupName != "" {
					source = "group:" + rec.GroupName
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					rec.Name,
					source,
					shortID(rec.Hash),
					rec.AppliedAt.Format(timestampFormat),
				)
			}
			return w.Flush()
		},
	}

	return cmd
}

func newStateRunsCommand() *cobra.Command {
	var (
		allHosts bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one run with its events",
		Args:  cobra.MaximumNArgs(1),
		Example: `  # Recent runs for this machine
  owl state runs

  # Recent runs across all hosts
  owl state runs --all-hosts

  # One run in detail, with its event log
  owl state runs 2f1c73ea-8a4b-4c26-9d30-5b1f6f4c9a01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("host", hostName).
				Bool("all_hosts", allHosts).
				Msg("Listing runs")

			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return printRunDetail(ctx, store, args[0])
			}

			var hostFilter *string
			if !allHosts {
				hostFilter = &hostName
			}

			runs, err := store.ListRuns(ctx, hostFilter, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tHOST\tCOMMAND\tSTATUS\tSTARTED\tDURATION")
			for _, run := range runs {
				duration := ""
				if run.CompletedAt != nil {
					duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					shortID(run.ID),
					run.Host,
					run.Command,
					run.Status,
					run.StartedAt.Format(timestampFormat),
					duration,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&allHosts, "all-hosts", false, "list runs for every host")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func printRunDetail(ctx context.Context, store stores.Store, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	fmt.Printf("Run: %s\n", run.ID)
	fmt.Printf("Host: %s\n", run.Host)
	fmt.Printf("Command: %s\n", run.Command)
	fmt.Printf("Status: %s\n", run.Status)
	fmt.Printf("Started: %s\n", run.StartedAt.Format(timestampFormat))
	if run.CompletedAt != nil {
		fmt.Printf("Completed: %s (%s)\n",
			run.CompletedAt.Format(timestampFormat),
			run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != nil {
		fmt.Printf("Error: %s\n", *run.Error)
	}

	events, err := store.GetEvents(ctx, &run.ID, nil, 100, 0)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	if len(events) > 0 {
		fmt.Printf("\nEvents:\n")
		for _, event := range events {
			fmt.Printf("  %s [%s] %s\n", event.Timestamp.Format(timestampFormat), event.Level, event.Message)
		}
	}

	return nil
}

func newStatePruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		Long: `Delete recorded runs whose start time is older than the cutoff.
Events attached to a pruned run are deleted with it; package records
keep their content but lose the reference to the pruned run.`,
		Example: `  # Drop runs older than 30 days (the default)
  owl state prune

  # Keep only the last week
  owl state prune --older-than 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Dur("older_than", olderThan).
				Msg("Pruning runs")

			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().UTC().Add(-olderThan)
			pruned, err := store.PruneRuns(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune runs: %w", err)
			}

			fmt.Printf("Pruned %d runs older than %s\n", pruned, cutoff.Format(timestampFormat))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "prune runs started before now minus this duration")

	return cmd
}

// shortID abbreviates hashes and UUIDs for table output.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
