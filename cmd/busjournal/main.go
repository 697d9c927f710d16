// Command busjournal inspects a SQLite event bus journal.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fieldline/evbus/journal"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "busjournal",
	Short: "Inspect an event bus journal",
	Long:  "busjournal — list and summarize records from a SQLite event bus journal.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the journal database (required)")
	_ = rootCmd.MarkPersistentFlagRequired("db")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("busjournal version %s\n", version))

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newStatsCmd())
}

func openStore() (*journal.SQLiteStore, error) {
	return journal.NewSQLiteStore(journal.SQLiteStoreConfig{DSN: dbPath})
}

func newListCmd() *cobra.Command {
	var afterSeq uint64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal records, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(context.Background(), afterSeq, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tOUTCOME\tMATCHED\tDETAIL")
			for _, rec := range records {
				detail := rec.Payload
				if rec.Outcome == journal.OutcomeError {
					detail = rec.Error
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					rec.Seq,
					rec.Time.Format("2006-01-02T15:04:05.000"),
					rec.EventType,
					rec.Outcome,
					rec.Matched,
					detail,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Uint64Var(&afterSeq, "after-seq", 0, "Only records with a higher sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 = all)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize journal records by event type and outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(context.Background(), 0, 0)
			if err != nil {
				return err
			}

			type key struct {
				eventType string
				outcome   journal.Outcome
			}
			counts := make(map[key]int)
			for _, rec := range records {
				counts[key{rec.EventType, rec.Outcome}]++
			}

			keys := make([]key, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool {
				if keys[i].eventType != keys[j].eventType {
					return keys[i].eventType < keys[j].eventType
				}
				return keys[i].outcome < keys[j].outcome
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tOUTCOME\tCOUNT")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%d\n", k.eventType, k.outcome, counts[k])
			}
			fmt.Fprintf(w, "TOTAL\t\t%d\n", len(records))
			return w.Flush()
		},
	}
}
