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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/novtran/internal/completion"
	"github.com/valpere/novtran/internal/credentials"
	"github.com/valpere/novtran/internal/detector"
	"github.com/valpere/novtran/internal/document"
	"github.com/valpere/novtran/internal/glossary"
	"github.com/valpere/novtran/internal/orchestrator"
	"github.com/valpere/novtran/internal/progress"
	"github.com/valpere/novtran/internal/prompt"
	"github.com/valpere/novtran/internal/validator"
)

var (
	translateNovel    string
	translateStart    int
	translateFile     int
	translateRange    string
	translateCount    int
	translateForce    bool
	translateReset    bool
	translateParallel bool
	translateWorkers  int
	translateTimeout  time.Duration
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate the chunks of a novel",
	Long: `Translate the chunk files in <source_root>/<novel> into
<output_root>/<novel>/中_NNNNN.md, updating the novel's glossary after each
chunk.

Chunks already recorded as completed are skipped unless --force is given.

Selecting chunks:
  (default)      every pending chunk, limited by --count
  --start N      chunks from N on, limited by --count
  --file N       only chunk N
  --range A-B    chunks A through B

With --parallel, up to --workers chunks are translated at once (capped by
workers.max). --timeout bounds the whole job; when it expires no new chunk
is started and in-flight chunks are allowed to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireNovel(translateNovel); err != nil {
			return err
		}
		cfg := appConfig
		if err := cfg.Validate(); err != nil {
			return err
		}

		sel := orchestrator.Selection{
			Start:  translateStart,
			Single: translateFile,
			Count:  translateCount,
			Force:  translateForce,
		}
		if translateRange != "" {
			r, err := parseRange(translateRange)
			if err != nil {
				return err
			}
			sel.Range = r
		}

		ctx, stop := signalContext()
		defer stop()

		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ws, err := document.Open(cfg, translateNovel)
		if err != nil {
			return err
		}
		ledger, err := progress.Open(ctx, db, translateNovel)
		if err != nil {
			return err
		}
		if translateReset {
			if err := ledger.Reset(ctx); err != nil {
				return err
			}
			logger.Info("progress reset", zap.String("novel", translateNovel))
		}

		all, err := ws.ChunkIndices()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return fmt.Errorf("no %s chunk files in %s", cfg.SourceExt, ws.SourceDir)
		}
		if err := ledger.SetTotal(ctx, len(all)); err != nil {
			return err
		}

		targets, err := orchestrator.SelectTargets(all, sel, ledger.IsCompleted)
		if err != nil {
			return err
		}

		templates, err := prompt.Load(cfg.Paths.TemplatePaths())
		if err != nil {
			return err
		}

		gstore := glossary.NewStore(cfg.Paths.TerminologyDir, logger)
		gloss, err := gstore.Load(translateNovel)
		if err != nil {
			return err
		}

		pool, err := credentials.New(cfg.Credentials(),
			credentials.CooldownsFromConfig(cfg.Cooldown),
			credentials.WithRequestsPerMinute(cfg.RequestsPerMinute),
			credentials.WithLogger(logger))
		if err != nil {
			return err
		}

		orch := orchestrator.New(orchestrator.Deps{
			Completer:     completion.NewFromConfig(cfg, logger),
			Pool:          pool,
			Glossary:      gloss,
			GlossaryStore: gstore,
			Ledger:        ledger,
			Workspace:     ws,
			Templates:     templates,
			Store:         db,
			Validator:     validator.New(detector.New(), cfg.TargetLanguage),
			Logger:        logger,
		}, orchestrator.ConfigFrom(cfg))

		workers := 1
		if translateParallel {
			workers = cfg.EffectiveWorkers(translateWorkers)
		}
		out, runErr := orch.Run(ctx, orchestrator.Job{
			DocumentID: translateNovel,
			Targets:    targets,
			Force:      translateForce,
			Parallel:   translateParallel,
			Workers:    workers,
			Deadline:   translateTimeout,
		})
		if out != nil {
			printOutcome(out, ledger.Summary())
		}
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("interrupted: %w", runErr)
			}
			return runErr
		}
		return out.Err()
	},
}

func printOutcome(out *orchestrator.Outcome, sum progress.Summary) {
	fmt.Printf("Run %s finished in %s\n", out.RunID, out.Duration.Round(time.Second))
	fmt.Printf("  processed: %d  succeeded: %d  failed: %d  skipped: %d\n",
		len(out.Processed), len(out.Succeeded), len(out.Failed), len(out.Skipped))
	if len(out.Failed) > 0 {
		fmt.Printf("  failed chunks: %s\n", compactRanges(out.Failed))
	}
	if len(out.Pending) > 0 {
		reason := "aborted"
		if out.TimedOut {
			reason = "job timeout"
		}
		fmt.Printf("  not started (%s): %s\n", reason, compactRanges(out.Pending))
	}
	if n := out.GlossaryAdded.Total(); n > 0 {
		fmt.Printf("  glossary: +%d characters, +%d proper nouns, +%d cultural expressions\n",
			out.GlossaryAdded.Characters, out.GlossaryAdded.ProperNouns, out.GlossaryAdded.CulturalExpressions)
	}
	fmt.Printf("  progress: %d/%d chunks completed\n", sum.Completed, sum.Total)
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateNovel, "novel", "n", "", "Novel directory name under the source root (required)")
	translateCmd.Flags().IntVarP(&translateStart, "start", "s", 0, "First chunk number to translate")
	translateCmd.Flags().IntVarP(&translateFile, "file", "f", 0, "Translate only this chunk number")
	translateCmd.Flags().StringVarP(&translateRange, "range", "r", "", "Translate chunks in this range, e.g. 10-20")
	translateCmd.Flags().IntVarP(&translateCount, "count", "c", 0, "Maximum number of chunks to translate (0 = all)")
	translateCmd.Flags().BoolVar(&translateForce, "force", false, "Retranslate chunks that are already completed")
	translateCmd.Flags().BoolVar(&translateReset, "reset", false, "Clear progress before translating")
	translateCmd.Flags().BoolVarP(&translateParallel, "parallel", "p", false, "Translate chunks concurrently")
	translateCmd.Flags().IntVarP(&translateWorkers, "workers", "w", 0, "Concurrent workers with --parallel (default workers.default)")
	translateCmd.Flags().DurationVar(&translateTimeout, "timeout", 0, "Wall-clock limit for the job (0 = pending chunks x api_timeout x job_timeout_factor, negative = none)")

	translateCmd.MarkFlagsMutuallyExclusive("start", "file", "range")
	translateCmd.MarkFlagRequired("novel")
}
