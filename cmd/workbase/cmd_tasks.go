package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/types"
)

var tasksStatus string

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by status (todo, in_progress, done)")
	rootCmd.AddCommand(tasksCmd, statsCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := context.Background()
		var tasks []*types.Task
		if tasksStatus != "" {
			tasks, err = st.ListTasksByStatus(ctx, tasksStatus, 50)
		} else {
			tasks, err = st.ListRecentTasks(ctx, 50)
		}
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(os.Stdout, "No tasks.")
			return nil
		}
		for _, t := range tasks {
			line := fmt.Sprintf("#%-4d [%-11s] %-8s %s", t.ID, t.Status, t.Priority, t.Title)
			if t.DueDate != "" {
				line += "  due " + t.DueDate
			}
			if t.Assignee != "" {
				line += "  @" + t.Assignee
			}
			fmt.Fprintln(os.Stdout, line)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard stats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		stats, err := st.Stats(context.Background(), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Tasks:           %d (todo %d / in progress %d / done %d)\n",
			stats.Total, stats.Todo, stats.InProgress, stats.Done)
		fmt.Fprintf(os.Stdout, "Done this week:  %d\n", stats.CompletedWeek)
		fmt.Fprintf(os.Stdout, "Overdue:         %d\n", stats.Overdue)
		fmt.Fprintf(os.Stdout, "Notes:           %d\n", stats.Notes)
		fmt.Fprintf(os.Stdout, "KB entries:      %d\n", stats.KBEntries)
		return nil
	},
}
