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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/novtran/internal/glossary"
)

var (
	glossaryNovel    string
	glossaryCategory string
	glossaryNote     string
	glossaryAliases  []string
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the per-novel terminology glossary",
	Long: `List, add, delete and count the glossary entries of a novel.

The glossary has three categories (characters, proper_nouns,
cultural_expressions) stored as JSON files under
<terminology_dir>/<novel>/. Entries are also added automatically during
translation; an existing entry is never overwritten, only completed.`,
}

func loadGlossary() (*glossary.Store, *glossary.Glossary, error) {
	if err := requireNovel(glossaryNovel); err != nil {
		return nil, nil, err
	}
	s := glossary.NewStore(appConfig.Paths.TerminologyDir, logger)
	g, err := s.Load(glossaryNovel)
	if err != nil {
		return nil, nil, err
	}
	return s, g, nil
}

func selectedCategories() ([]glossary.Category, error) {
	if glossaryCategory == "" {
		return glossary.Categories, nil
	}
	c, err := glossary.ParseCategory(glossaryCategory)
	if err != nil {
		return nil, err
	}
	return []glossary.Category{c}, nil
}

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List glossary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := loadGlossary()
		if err != nil {
			return err
		}
		cats, err := selectedCategories()
		if err != nil {
			return err
		}

		if g.Len() == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tSOURCE\tTARGET\tALIASES\tNOTE")
		for _, c := range cats {
			for _, e := range g.Entries(c) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c, e.Source, e.Target, strings.Join(e.Aliases, ", "), e.Note)
			}
		}
		return w.Flush()
	},
}

var glossaryAddCmd = &cobra.Command{
	Use:   "add <category> <source-term> [target-term]",
	Short: "Add a glossary entry",
	Long: `Add an entry to a glossary category. An existing entry keeps its
translation; a missing translation, note or alias is filled in.

Example:
  novtran glossary add characters 김민수 金敏洙 --novel 1 --alias 민수 --note 主角`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := glossary.ParseCategory(args[0])
		if err != nil {
			return err
		}
		s, g, err := loadGlossary()
		if err != nil {
			return err
		}

		e := glossary.Entry{Source: args[1], Note: glossaryNote, Aliases: glossaryAliases}
		if len(args) == 3 {
			e.Target = args[2]
		}
		added, err := s.Add(g, c, e)
		if err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		if !added {
			cur, _ := g.Lookup(c, e.Source)
			fmt.Printf("Already present: [%s] %s → %s\n", c, cur.Source, cur.Target)
			return nil
		}
		fmt.Printf("Added: [%s] %s → %s\n", c, e.Source, e.Target)
		return nil
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <category> <source-term>",
	Short: "Delete a glossary entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := glossary.ParseCategory(args[0])
		if err != nil {
			return err
		}
		s, g, err := loadGlossary()
		if err != nil {
			return err
		}

		removed, err := s.Remove(g, c, args[1])
		if err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		if !removed {
			return fmt.Errorf("no %s entry for %q", c, args[1])
		}
		fmt.Printf("Deleted: [%s] %s\n", c, args[1])
		return nil
	},
}

var glossaryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count glossary entries per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := loadGlossary()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tTOTAL\tTRANSLATED\tUNTRANSLATED")
		total := 0
		for _, st := range g.Stats() {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", st.Category, st.Total, st.Translated, st.Untranslated)
			total += st.Total
		}
		fmt.Fprintf(w, "all\t%d\t\t\n", total)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().StringVarP(&glossaryNovel, "novel", "n", "", "Novel name (required)")
	glossaryCmd.MarkPersistentFlagRequired("novel")

	glossaryListCmd.Flags().StringVarP(&glossaryCategory, "category", "c", "", "Only list this category")

	glossaryAddCmd.Flags().StringVar(&glossaryNote, "note", "", "Note shown next to the entry in prompts")
	glossaryAddCmd.Flags().StringSliceVar(&glossaryAliases, "alias", nil, "Alias of a character (repeatable)")

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
	glossaryCmd.AddCommand(glossaryStatsCmd)
}
