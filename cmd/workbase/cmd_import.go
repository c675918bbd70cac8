package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/workbase/internal/export"
	"github.com/user/workbase/internal/store"
)

var importCategory string

func init() {
	importCmd.Flags().StringVar(&importCategory, "category", "", "knowledge-base category for the imported entries")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <export-file>",
	Short: "Import a WhatsApp chat export into the knowledge base",
	Long: `Parses an exported WhatsApp chat text file, groups its messages by day,
and stores one knowledge-base entry per day.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read export file: %w", err)
		}

		records := export.Parse(string(raw))
		entries, err := export.Entries(records, importCategory)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		n, err := st.ImportKBEntries(context.Background(), entries, fmt.Sprintf("Imported %s", args[0]))
		if err != nil {
			return fmt.Errorf("import entries: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Imported %d day(s) of chat history into the knowledge base\n", n)
		return nil
	},
}
