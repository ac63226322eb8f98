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

	"github.com/valpere/novtran/internal/completion"
	"github.com/valpere/novtran/internal/config"
	"github.com/valpere/novtran/internal/credentials"
)

var keysProbe bool

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configured API keys",
	Long: `List the configured API keys in rotation order, masked.

With --probe each key is sent a one-line test prompt and the outcome is
reported (ok, auth, rate_limit, ...). Probes are not retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		keys := cfg.Credentials()
		if len(keys) == 0 {
			return fmt.Errorf("no API key configured (set API_KEY or API_KEY_1..API_KEY_%d)", config.MaxNumberedKeys)
		}

		var client *completion.Client
		if keysProbe {
			client = completion.NewFromConfig(cfg, logger)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if keysProbe {
			fmt.Fprintln(w, "#\tKEY\tRESULT\tLATENCY")
		} else {
			fmt.Fprintln(w, "#\tKEY")
		}
		for i, key := range keys {
			if !keysProbe {
				fmt.Fprintf(w, "%d\t%s\n", i+1, credentials.Mask(key))
				continue
			}
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout)
			err := client.Probe(ctx, key)
			cancel()
			result := "ok"
			if err != nil {
				result = fmt.Sprintf("%s: %v", completion.KindOf(err), err)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, credentials.Mask(key), preview(result, 100), time.Since(start).Round(time.Millisecond))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.Flags().BoolVar(&keysProbe, "probe", false, "Send a test request with every key")
}
