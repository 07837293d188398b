package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "simbatch",
	Short: "Run batches of simulation jobs through a bounded worker pool",
	Long:  `simbatch`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		dataDir, err = GetDataDir()
		if err != nil {
			log.Fatalf("Failed to get data directory: %v", err)
		}
		if err := initDB(dataDir); err != nil {
			log.Fatalf("Failed to initialize DB: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() != "dashboard" {
			CloseDB()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the configured batch of simulations",
	Long:  `Run every simulation in the plan through the worker pool, writing per-job artifacts, the shared execution log, and a history record.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("failed to get config flag: %v", err)
		}

		plan, err := LoadRunPlan(configPath)
		if err != nil {
			log.Fatalf("Failed to load run plan: %v", err)
		}
		if pool, err := cmd.Flags().GetInt("pool"); err == nil && pool > 0 {
			plan.PoolSize = pool
		}

		logger, closeLog, err := NewExecutionLogger(plan.LogFile, plan.LogLevel)
		if err != nil {
			log.Fatalf("Failed to open execution log: %v", err)
		}

		runner := NewRunner(plan, logger)
		runID := uuid.NewString()
		startedAt := time.Now()

		results, err := runner.RunAll()
		if err != nil {
			logger.Error(err.Error())
			closeLog()
			CloseDB()
			os.Exit(1)
		}
		finishedAt := time.Now()

		record := RunRecord{ID: runID, StartedAt: startedAt, FinishedAt: finishedAt}
		if err := RecordRun(record, results); err != nil {
			logger.Errorf("Failed to record run history: %v", err)
		} else if err := RecordRunMetrics(results); err != nil {
			logger.Errorf("Failed to update metrics: %v", err)
		}

		logger.Infof("Run recorded with ID %s", runID)
		closeLog()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent batch runs",
	Run: func(cmd *cobra.Command, args []string) {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			log.Fatalf("failed to get limit flag: %v", err)
		}

		runs, err := RecentRuns(limit)
		if err != nil {
			log.Fatalf("Failed to get runs: %v", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return
		}

		fmt.Printf("%-38s %-25s %-6s %-10s %-10s %-8s\n", "RUN_ID", "STARTED_AT", "JOBS", "COMPLETED", "NOT_FOUND", "ERRORS")
		fmt.Println(strings.Repeat("-", 100))
		for _, run := range runs {
			fmt.Printf("%-38s %-25s %-6d %-10d %-10d %-8d\n",
				run.ID,
				run.StartedAt.Format(time.RFC3339),
				run.Total,
				run.Completed,
				run.FileNotFound,
				run.LaunchErrors,
			)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show run-id",
	Short: "Show per-job results of a recorded run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runID := args[0]
		results, err := ResultsForRun(runID)
		if err != nil {
			log.Fatalf("failed to get results: %v", err)
		}
		if len(results) == 0 {
			fmt.Printf("No results found for run: %s\n", runID)
			return
		}

		fmt.Printf("Run %s\n", runID)
		fmt.Println(strings.Repeat("=", 80))
		for _, res := range results {
			fmt.Printf("%-20s %-14s exit=%-4d %8.2fs\n",
				res.JobName,
				string(res.Status),
				res.ExitCode,
				float64(res.DurationMs)/1000.0,
			)
			if res.Error != "" {
				fmt.Printf("  error: %s\n", res.Error)
			}
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate execution statistics",
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := GetExecutionStats()
		if err != nil {
			log.Fatalf("Failed to get stats: %v", err)
		}

		fmt.Println("Execution Statistics")
		fmt.Println(strings.Repeat("=", 40))
		fmt.Printf("%-22s %v\n", "Total runs:", stats["total_runs"])
		fmt.Printf("%-22s %v\n", "Jobs processed:", stats["total_processed"])
		fmt.Printf("%-22s %v\n", "Jobs succeeded:", stats["total_succeeded"])
		fmt.Printf("%-22s %v\n", "Non-zero exits:", stats["total_nonzero_exit"])
		fmt.Printf("%-22s %v\n", "Files not found:", stats["total_file_not_found"])
		fmt.Printf("%-22s %v\n", "Launch errors:", stats["total_launch_error"])
		fmt.Printf("%-22s %.1f%%\n", "Success rate:", stats["success_rate"])
		fmt.Printf("%-22s %.0fms\n", "Avg duration (24h):", stats["avg_duration_ms"])
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the web dashboard server",
	Long:  `Start a minimal web dashboard server for browsing simbatch run history and metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			log.Fatalf("failed to get port flag: %v", err)
		}
		if port < 1 || port > 65535 {
			log.Fatal("Invalid port")
		}
		server := NewServer(port)
		if err := server.Start(); err != nil {
			log.Fatalf("failed to start dashboard server: %v", err)
		}
	},
}

func init() {
	runCmd.Flags().StringP("config", "c", DefaultConfigFile, "Path to the run plan YAML")
	runCmd.Flags().IntP("pool", "p", 0, "Override the configured worker pool size")
	rootCmd.AddCommand(runCmd)

	historyCmd.Flags().IntP("limit", "n", 10, "Number of runs to list")
	rootCmd.AddCommand(historyCmd)

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statsCmd)

	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to run the dashboard server on")
	rootCmd.AddCommand(dashboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
