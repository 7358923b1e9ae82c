package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"foreman/events"
	clihandler "foreman/events/cli"
	"foreman/executor"
	"foreman/handlers"
	"foreman/planner"
	"foreman/workflow"
	"foreman/wsbridge"
)

var runModelName string
var runWorkflowID string
var runParallelism int
var runListenAddr string

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Plan and execute a workflow",
	Long: `Plan a request into a task workflow and execute it to completion. With
--workflow, resume a previously planned workflow instead of planning a new
one; in that case the request argument is omitted.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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

		provider, modelID, err := buildProvider(ctx, cfg, runModelName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		manager := workflow.NewManager(stores.Workflows)

		var wf *workflow.Context
		if runWorkflowID != "" {
			if len(args) > 0 {
				fmt.Fprintln(os.Stderr, "Error: --workflow and a request argument are mutually exclusive")
				os.Exit(1)
			}
			loaded, found, err := manager.LoadWorkflow(runWorkflowID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading workflow: %v\n", err)
				os.Exit(1)
			}
			if !found {
				fmt.Fprintf(os.Stderr, "Workflow %s not found\n", runWorkflowID)
				os.Exit(1)
			}
			wf = loaded
		} else {
			if len(args) == 0 {
				fmt.Fprintln(os.Stderr, "Error: a request argument is required unless --workflow is given")
				os.Exit(1)
			}
			var opts []planner.Option
			if !*cfg.Executor.StrictPlanning {
				opts = append(opts, planner.AllowUnresolvedDependencies())
			}
			pl := planner.NewPlanner(provider, modelID, manager, opts...)
			wf, err = pl.Plan(ctx, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Planning failed: %v\n", err)
				os.Exit(1)
			}
		}

		handler := events.Fanout{clihandler.NewWorkflowHandler()}
		if runListenAddr != "" {
			hub := wsbridge.NewHub(nil)
			defer hub.Close()
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/events", hub)
				if err := http.ListenAndServe(runListenAddr, mux); err != nil {
					fmt.Fprintf(os.Stderr, "Event server stopped: %v\n", err)
				}
			}()
			fmt.Printf("Broadcasting events on ws://%s/events\n", runListenAddr)
			handler = append(handler, wsbridge.NewEventHandler(hub))
		}

		parallelism := cfg.Executor.Parallelism
		if runParallelism > 0 {
			parallelism = runParallelism
		}
		var strategy executor.Strategy = executor.Serial{}
		if parallelism > 1 {
			strategy = executor.Pool{Workers: parallelism}
		}

		registry := handlers.NewDefaultRegistry(provider, modelID, cfg.Executor.Workspace)
		exec := executor.NewExecutor(manager, registry,
			executor.WithStrategy(strategy),
			executor.WithEvents(events.NewStoringHandler(handler, stores.Events, nil)),
		)

		status, err := exec.Run(ctx, wf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nWorkflow failed: %v\n", err)
			os.Exit(1)
		}
		if status.Overall == workflow.OverallFailed || status.Overall == workflow.OverallPartiallyCompleted {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&configPath, "config", "c", ".", "Path to config file or directory")
	runCmd.Flags().StringVarP(&runModelName, "model", "m", "", "Model block to use")
	runCmd.Flags().StringVarP(&runWorkflowID, "workflow", "w", "", "Resume an existing workflow by ID")
	runCmd.Flags().IntVarP(&runParallelism, "parallelism", "p", 0, "Worker count for concurrent dispatch (overrides config)")
	runCmd.Flags().StringVarP(&runListenAddr, "listen", "l", "", "Address to serve live workflow events over WebSocket (e.g. :8422)")
}
