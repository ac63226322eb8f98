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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/novtran/internal/config"
	"github.com/valpere/novtran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	debug   bool

	appConfig *config.Config
	logger    = zap.NewNop()
)

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"debug":           "debug",
	"paths.db":        "db",
	"paths.log_file":  "log-file",
	"chunk.max_chars": "max-chars",
}

var rootCmd = &cobra.Command{
	Use:   "novtran",
	Short: "LLM novel translator with a growing per-novel glossary",
	Long: `novtran translates pre-split Korean or Japanese novels into Chinese one
chunk at a time through an OpenAI-compatible chat completion endpoint.

After each chunk the model is asked for new character names, proper nouns
and cultural expressions, which are merged into the novel's glossary and
fed into every later prompt. Progress is persisted per chunk, so an
interrupted run resumes where it stopped.

Configuration is read from novtran.yaml (or --config), NOVTRAN_* environment
variables, and API_KEY / API_KEY_1..API_KEY_19 for credentials.

Use "novtran split --help" to prepare a novel and "novtran translate --help"
to translate it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		l, err := logging.New(logging.Options{Debug: cfg.Debug, File: cfg.Paths.LogFile})
		if err != nil {
			return err
		}
		appConfig, logger = cfg, l

		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("loaded config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./novtran.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("db", "", "Database path for progress and attempt history")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
}
