package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelsync/internal/catalog"
	"reelsync/internal/media"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the media catalog",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := catalog.ListFilter{}
			if category != "" {
				parsed, err := media.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = parsed
			}
			_, store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.ListEntries(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}
			list := newListing("ID", "Category", "Title", "Released", "Files", "Metadata").numeric(1, 5)
			for _, e := range entries {
				updated := "-"
				if e.APIUpdated != nil {
					updated = e.APIUpdated.Local().Format("2006-01-02 15:04")
				}
				list.row(strconv.FormatInt(e.ID, 10), string(e.Category), e.Title, e.ReleaseDate, strconv.Itoa(e.Instances), updated)
			}
			fmt.Fprintln(out, list)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list one category (movie or series)")
	return cmd
}
