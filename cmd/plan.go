package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"foreman/planner"
	"foreman/workflow"
)

var planModelName string
var planAllowUnresolved bool

var planCmd = &cobra.Command{
	Use:   "plan [request]",
	Short: "Decompose a request into a task workflow without executing it",
	Long: `Ask the configured model to break a natural language request into typed
tasks with dependencies. The resulting workflow is persisted so it can be
executed later with 'foreman run --workflow <id>'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		stores, err := openStores(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
			os.Exit(1)
		}
		defer stores.Close()

		provider, modelID, err := buildProvider(ctx, cfg, planModelName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		manager := workflow.NewManager(stores.Workflows)

		var opts []planner.Option
		if planAllowUnresolved || !*cfg.Executor.StrictPlanning {
			opts = append(opts, planner.AllowUnresolvedDependencies())
		}
		pl := planner.NewPlanner(provider, modelID, manager, opts...)

		wf, err := pl.Plan(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Planning failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Workflow %s: %s\n\n", wf.ID(), wf.Description())
		printTaskTable(manager, wf)
	},
}

func printTaskTable(manager *workflow.Manager, wf *workflow.Context) {
	for i, t := range manager.TopologicalOrder(wf) {
		deps := "-"
		if len(t.Dependencies) > 0 {
			deps = strings.Join(t.Dependencies, ", ")
		}
		fmt.Printf("%2d. [%s] %s (%s)\n    id: %s  deps: %s\n", i+1, t.Type, t.Description, t.Status, t.ID, deps)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVarP(&configPath, "config", "c", ".", "Path to config file or directory")
	planCmd.Flags().StringVarP(&planModelName, "model", "m", "", "Model block to use for planning")
	planCmd.Flags().BoolVar(&planAllowUnresolved, "allow-unresolved", false, "Drop unknown dependency references instead of failing the plan")
}
