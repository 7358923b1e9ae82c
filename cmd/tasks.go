package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foreman/workflow"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [workflow_id]",
	Short: "Show the tasks of a workflow",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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

		manager := workflow.NewManager(stores.Workflows)
		wf, found, err := manager.LoadWorkflow(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading workflow: %v\n", err)
			os.Exit(1)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "Workflow %s not found\n", args[0])
			os.Exit(1)
		}

		status := manager.Status(wf)
		fmt.Printf("Workflow %s: %s\n", wf.ID(), wf.Description())
		fmt.Printf("Status: %s (%.0f%% complete, %d tasks)\n\n", status.Overall, status.Progress, status.Total)
		printTaskTable(manager, wf)
	},
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List stored workflows",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
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

		metas, err := stores.Workflows.ListWorkflows()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing workflows: %v\n", err)
			os.Exit(1)
		}
		if len(metas) == 0 {
			fmt.Println("No workflows stored.")
			return
		}

		manager := workflow.NewManager(stores.Workflows)
		for _, meta := range metas {
			line := fmt.Sprintf("%s  %s  %s", meta.ID, meta.CreatedAt.Format("2006-01-02 15:04"), meta.Description)
			if wf, found, err := manager.LoadWorkflow(meta.ID); err == nil && found {
				line += fmt.Sprintf("  [%s]", manager.Status(wf).Overall)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(workflowsCmd)
	tasksCmd.Flags().StringVarP(&configPath, "config", "c", ".", "Path to config file or directory")
	workflowsCmd.Flags().StringVarP(&configPath, "config", "c", ".", "Path to config file or directory")
}
