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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/novtran/internal/chunker"
	"github.com/valpere/novtran/internal/detector"
	"github.com/valpere/novtran/internal/document"
	"github.com/valpere/novtran/internal/extract"
)

// detectionSample bounds how much text is handed to the language detector.
const detectionSample = 2000

var (
	splitNovel     string
	splitLanguage  string
	splitOverwrite bool
)

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split a novel into chunk files ready for translation",
	Long: `Extract the text of a .txt, .md, .html or .epub file, split it into chunks
of at most chunk.max_chars characters on paragraph (then sentence)
boundaries, and write them to <source_root>/<novel>/<novel>_NNN.md together
with an index.yaml manifest.

The novel name defaults to the file name without its extension.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		input := args[0]

		novel := splitNovel
		if novel == "" {
			novel = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		}
		dir := filepath.Join(cfg.Paths.SourceRoot, novel)
		if old, err := document.ReadManifest(dir); err == nil {
			if !splitOverwrite {
				return fmt.Errorf("%s has already been split into %s (use --overwrite)", input, dir)
			}
			for _, c := range old.Chunks {
				_ = os.Remove(filepath.Join(dir, c.File))
			}
		}

		text, err := extract.Text(input)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("no text extracted from %s", input)
		}

		lang := strings.ToLower(splitLanguage)
		switch lang {
		case "auto", "":
			sample := text
			if r := []rune(sample); len(r) > detectionSample {
				sample = string(r[:detectionSample])
			}
			lang = detector.New().SourceLanguage(sample)
			logger.Info("detected source language", zap.String("language", lang))
		case "ko", "ja", "zh":
		default:
			return fmt.Errorf("unsupported language %q (want auto, ko or ja)", splitLanguage)
		}

		chunks := chunker.Split(text, chunker.Options{
			MaxChars: cfg.Chunk.MaxChars,
			MinChars: cfg.Chunk.MinChars,
			Language: lang,
		})

		m, err := document.WriteSplit(dir, novel, chunks, document.Manifest{
			Source:   filepath.Base(input),
			Language: lang,
			MaxChars: cfg.Chunk.MaxChars,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Split %s into %d chunks (%s)\n", input, len(m.Chunks), lang)
		fmt.Printf("Output directory: %s\n", dir)
		fmt.Printf("Translate with: novtran translate --novel %s\n", novel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringVarP(&splitNovel, "novel", "n", "", "Novel name (default: input file name)")
	splitCmd.Flags().StringVarP(&splitLanguage, "language", "l", "auto", "Source language: auto, ko or ja")
	splitCmd.Flags().Int("max-chars", 800, "Maximum characters per chunk")
	splitCmd.Flags().BoolVar(&splitOverwrite, "overwrite", false, "Split again over an existing chunk directory")
}
