/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/novtran/internal/progress"
)

var (
	progressNovel   string
	progressPreview int
	progressRecent  int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the progress record of a novel",
	Long: `Forget which chunks of a novel have been translated. Output files and the
glossary are left untouched; the next translate run starts from the first
chunk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireNovel(progressNovel); err != nil {
			return err
		}
		db, err := openStore(appConfig)
		if err != nil {
			return err
		}
		defer db.Close()

		deleted, err := db.DeleteProgress(context.Background(), progressNovel)
		if err != nil {
			return fmt.Errorf("failed to reset progress: %w", err)
		}
		if !deleted {
			fmt.Printf("No progress recorded for %s.\n", progressNovel)
			return nil
		}
		fmt.Printf("Progress for %s has been reset.\n", progressNovel)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show translation progress of a novel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireNovel(progressNovel); err != nil {
			return err
		}
		cfg := appConfig
		ctx := context.Background()

		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ledger, err := progress.Open(ctx, db, progressNovel)
		if err != nil {
			return err
		}
		ws := outputWorkspace(cfg, progressNovel)
		sum := ledger.Summary()
		if all, err := ws.ChunkIndices(); err == nil && len(all) > sum.Total {
			sum.Total = len(all)
			sum.Remaining = sum.Total - sum.Completed
		}

		fmt.Printf("Novel: %s\n", progressNovel)
		if sum.Total > 0 {
			fmt.Printf("Completed: %d/%d (%.1f%%)\n", sum.Completed, sum.Total, 100*float64(sum.Completed)/float64(sum.Total))
		} else {
			fmt.Printf("Completed: %d\n", sum.Completed)
		}
		fmt.Printf("Completed chunks: %s\n", compactRanges(ledger.Completed()))
		if !sum.UpdatedAt.IsZero() {
			fmt.Printf("Last chunk: %d at %s\n", sum.LastChunk, sum.UpdatedAt.Format(time.DateTime))
		}

		outputs, err := ws.Outputs()
		if err != nil {
			return err
		}
		fmt.Printf("Output files: %d in %s\n", len(outputs), ws.OutputDir)

		if latest, ok, err := ws.LatestOutput(); err == nil && ok {
			data, err := os.ReadFile(latest)
			if err == nil {
				fmt.Printf("\nLatest output %s:\n%s\n", latest, preview(string(data), progressPreview))
			}
		}

		stats, err := db.AttemptStats(ctx, progressNovel)
		if err != nil {
			return err
		}
		if stats.Total == 0 {
			return nil
		}
		fmt.Printf("\nAttempts: %d in %d runs, %d succeeded, %d failed, avg %s\n",
			stats.Total, stats.Runs, stats.Succeeded, stats.Failed, stats.AvgLatency.Round(time.Millisecond))

		recent, err := db.RecentAttempts(ctx, progressNovel, progressRecent)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCHUNK\tSTATUS\tLATENCY\tCREDENTIAL\tERROR")
		for _, a := range recent {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
				a.CreatedAt.Format(time.DateTime), a.ChunkIndex, a.Status,
				a.Latency.Round(time.Millisecond), a.Credential, preview(a.Error, 80))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(checkCmd)

	for _, c := range []*cobra.Command{resetCmd, checkCmd} {
		c.Flags().StringVarP(&progressNovel, "novel", "n", "", "Novel directory name (required)")
		c.MarkFlagRequired("novel")
	}
	checkCmd.Flags().IntVar(&progressPreview, "preview", 500, "Characters of the latest output to show")
	checkCmd.Flags().IntVar(&progressRecent, "recent", 10, "Recent attempts to list")
}
