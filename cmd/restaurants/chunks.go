package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/imkonsowa/restaurant-qa/catalog"
	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/intent"
	"github.com/spf13/cobra"
)

func newParseCmd(opts *options) *cobra.Command {
	var rules bool

	cmd := &cobra.Command{
		Use:   "parse [question]",
		Short: "Show how a question is routed, without answering it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			cat, err := loadCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			chunks := chunker.Build(cat.Restaurants())
			dishes := make([]string, chunks.Len())
			for i := range dishes {
				dishes[i] = chunks.Metadata(i).Item
			}

			d := intent.NewParser(cat.Names(), dishes).Parse(strings.Join(args, " "))

			if rules {
				printRules(cmd.ErrOrStderr(), d.Kind)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
	cmd.Flags().BoolVar(&rules, "rules", false, "print the rules in evaluation order to stderr, marking the one that matched")

	return cmd
}

func printRules(w io.Writer, matched intent.Kind) {
	for i, kind := range intent.Order() {
		mark := " "
		if kind == matched {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %d. %s\n", mark, i+1, kind)
	}
}

func newChunksCmd(opts *options) *cobra.Command {
	var (
		asJSON     bool
		restaurant string
	)

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Print the chunk corpus built from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			cat, err := loadCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			return printChunks(cmd, cat, restaurant, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print chunks as JSON lines")
	cmd.Flags().StringVar(&restaurant, "restaurant", "", "only chunks of this restaurant")

	return cmd
}

func printChunks(cmd *cobra.Command, cat *catalog.Catalog, restaurant string, asJSON bool) error {
	store := chunker.Build(cat.Restaurants())

	ordinals := store.Filter(func(m chunker.Metadata) bool {
		return restaurant == "" || strings.EqualFold(m.Restaurant, restaurant)
	})

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, i := range ordinals {
		c := store.Chunk(i)
		if asJSON {
			if err := enc.Encode(c); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%d\t%s\n", c.Ordinal, c.Text)
	}

	return nil
}
