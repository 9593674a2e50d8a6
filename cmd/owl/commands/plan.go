package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/engine"
	"github.com/owlconfig/owl/pkg/stores"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var (
		outPath string
		dotPath string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build an execution plan for a host",
		Long: `Build an execution plan by comparing the resolved configuration with
the state recorded for the host.

The plan holds one unit per operation (install, link, enable, env, run)
with dependencies between them, ordered into topological levels an
executor could run in parallel. Planning never touches the host; pass
--save to record the plan as a run in the state database.`,
		Example: `  # Plan for this machine
  owl plan

  # Write the plan and its dependency graph for inspection
  owl plan --out plan.json --dot plan.dot

  # Record the plan as a run
  owl plan --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("root", rootDir).
				Str("host", hostName).
				Msg("Building execution plan")

			ctx := cmd.Context()
			logger := log.Logger

			loader := config.NewLoader(rootDir, logger)
			resolved, err := loader.Resolve(ctx, hostName)
			if err != nil {
				return err
			}

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			recorded, err := store.GetHostState(ctx, hostName)
			if err != nil {
				return fmt.Errorf("failed to read recorded state: %w", err)
			}

			planner := engine.NewPlanner(logger)

			diff, err := planner.ComputeDiff(ctx, resolved, recorded)
			if err != nil {
				return fmt.Errorf("failed to compute diff: %w", err)
			}

			plan, err := planner.BuildPlan(ctx, resolved, diff)
			if err != nil {
				return fmt.Errorf("failed to build plan: %w", err)
			}

			if _, err := planner.BuildGraph(ctx, plan); err != nil {
				return fmt.Errorf("failed to build execution graph: %w", err)
			}

			if err := planner.ValidatePlan(ctx, plan); err != nil {
				return fmt.Errorf("plan validation failed: %w", err)
			}

			printPlanSummary(diff, plan)

			if outPath != "" {
				if err := writeJSONFile(outPath, plan); err != nil {
					return fmt.Errorf("failed to write plan: %w", err)
				}
				fmt.Printf("Plan written to %s\n", outPath)
			}

			if dotPath != "" {
				builder := engine.NewDAGBuilder()
				if _, err := builder.BuildGraph(plan.Units); err != nil {
					return fmt.Errorf("failed to render graph: %w", err)
				}
				if err := os.WriteFile(dotPath, []byte(builder.ToDOT()), 0644); err != nil {
					return fmt.Errorf("failed to write graph: %w", err)
				}
				fmt.Printf("Graph written to %s\n", dotPath)
			}

			if save {
				runID, err := savePlanRun(ctx, store, plan)
				if err != nil {
					return fmt.Errorf("failed to record run: %w", err)
				}
				fmt.Printf("Recorded run %s\n", runID)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the plan as JSON to this file")
	cmd.Flags().StringVar(&dotPath, "dot", "", "write the execution graph in DOT format to this file")
	cmd.Flags().BoolVar(&save, "save", false, "record the plan as a run in the state database")

	return cmd
}

func printPlanSummary(diff *engine.DiffResult, plan *engine.Plan) {
	fmt.Printf("Plan for host %s\n", plan.Host)
	fmt.Printf("Changes: %d to create, %d to update, %d to remove, %d unchanged\n\n",
		len(diff.Creates), len(diff.Updates), len(diff.Deletes), diff.UnchangedCount)

	if len(plan.Units) == 0 {
		fmt.Println("Nothing to do. Recorded state matches the configuration.")
		return
	}

	units := make([]engine.PlanUnit, len(plan.Units))
	copy(units, plan.Units)
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].ExecutionOrder != units[j].ExecutionOrder {
			return units[i].ExecutionOrder < units[j].ExecutionOrder
		}
		return units[i].ID < units[j].ID
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tOPERATION\tUNIT\tDETAIL")
	for _, unit := range units {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", unit.ExecutionOrder, unit.Operation, unit.ID, unit.Detail)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d units", plan.Stats.Total)
	if len(plan.Stats.ByOperation) > 0 {
		ops := make([]string, 0, len(plan.Stats.ByOperation))
		for op := range plan.Stats.ByOperation {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)

		parts := make([]string, 0, len(ops))
		for _, op := range ops {
			parts = append(parts, fmt.Sprintf("%d %s", plan.Stats.ByOperation[engine.OperationType(op)], op))
		}
		fmt.Printf(" (%s)", strings.Join(parts, ", "))
	}
	fmt.Println()

	if plan.Graph != nil {
		fmt.Printf("Execution levels: %d\n", plan.Graph.Depth)
	}
	fmt.Println()
}

// savePlanRun records the plan as a completed run with the plan JSON in
// the run metadata.
func savePlanRun(ctx context.Context, store stores.Store, plan *engine.Plan) (string, error) {
	metadata, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	completed := now
	run := &stores.Run{
		ID:          uuid.New().String(),
		Host:        plan.Host,
		Command:     "plan",
		Status:      stores.RunStatusCompleted,
		StartedAt:   now,
		CompletedAt: &completed,
		Metadata:    string(metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.CreateRun(ctx, run); err != nil {
		return "", err
	}

	event := &stores.Event{
		RunID:     &run.ID,
		Level:     stores.EventLevelInfo,
		Message:   fmt.Sprintf("Planned %d units for host %s", len(plan.Units), plan.Host),
		Timestamp: now,
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		return "", err
	}

	return run.ID, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
