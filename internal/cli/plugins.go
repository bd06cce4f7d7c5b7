package cli

import (
	"fmt"
	"io"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/spf13/cobra"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Browse the plugin catalog",
	}
	cmd.AddCommand(newPluginsListCmd(), newPluginsGetCmd(), newPluginsCategoriesCmd(), newPluginsDownloadCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	var (
		search   string
		category string
		sortBy   string
		page     int
		limit    int
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			query := client.Plugins.Query().
				Search(search).
				Category(category).
				SortBy(sortBy).
				Page(page).
				Limit(limit)

			if all {
				var plugins []*pluginhub.Plugin
				stream, errs := query.Stream(cmd.Context())
				for p := range stream {
					plugins = append(plugins, p)
				}
				if err := <-errs; err != nil {
					return fmt.Errorf("list plugins: %w", err)
				}
				if flagJSON {
					return printJSON(out, plugins)
				}
				printPlugins(out, plugins)
				return nil
			}

			result, err := query.Execute(cmd.Context())
			if err != nil {
				return fmt.Errorf("list plugins: %w", err)
			}
			if flagJSON {
				return printJSON(out, result)
			}

			printPlugins(out, result.Plugins)
			if result.TotalPages > 0 {
				fmt.Fprintf(out, "\nPage %d of %d (%d plugins)\n", result.Page, result.TotalPages, result.TotalCount)
			}
			if result.HasMore {
				fmt.Fprintf(out, "Next: --page %d\n", result.NextPage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&category, "category", "", "Category filter")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort order (newest, popular, name)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", pluginhub.DefaultPageSize, "Plugins per page")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")
	return cmd
}

func printPlugins(w io.Writer, plugins []*pluginhub.Plugin) {
	if len(plugins) == 0 {
		fmt.Fprintln(w, "No plugins found.")
		return
	}

	fmt.Fprintf(w, "%-26s  %-30s  %-14s  %s\n", "ID", "NAME", "CATEGORY", "DOWNLOADS")
	fmt.Fprintf(w, "%-26s  %-30s  %-14s  %s\n", "--", "----", "--------", "---------")
	for _, p := range plugins {
		fmt.Fprintf(w, "%-26s  %-30s  %-14s  %d\n", p.ID, p.Name, p.Category, p.Downloads)
	}
}

func newPluginsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <plugin_id>",
		Short: "Show one plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			plugin, err := client.Plugins.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get plugin: %w", err)
			}
			if flagJSON {
				return printJSON(out, plugin)
			}

			fmt.Fprintf(out, "Plugin: %s\n", plugin.Name)
			fmt.Fprintf(out, "  ID:        %s\n", plugin.ID)
			fmt.Fprintf(out, "  Category:  %s\n", plugin.Category)
			if plugin.Version != "" {
				fmt.Fprintf(out, "  Version:   %s\n", plugin.Version)
			}
			if plugin.ReleasedAt != nil {
				fmt.Fprintf(out, "  Released:  %s\n", plugin.ReleasedAt)
			}
			fmt.Fprintf(out, "  Downloads: %d\n", plugin.Downloads)
			if plugin.IsFree {
				fmt.Fprintln(out, "  Price:     free")
			} else {
				fmt.Fprintln(out, "  Price:     subscription")
			}
			if plugin.Description != "" {
				fmt.Fprintf(out, "\n%s\n", plugin.Description)
			}
			return nil
		},
	}
}

func newPluginsCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			categories, err := client.Plugins.Categories(cmd.Context())
			if err != nil {
				return fmt.Errorf("list categories: %w", err)
			}
			if flagJSON {
				return printJSON(out, categories)
			}
			for _, c := range categories {
				fmt.Fprintf(out, "%-20s  %d\n", c.Name, c.Count)
			}
			return nil
		},
	}
}

func newPluginsDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <plugin_id>",
		Short: "Print a download link (requires an active subscription)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			download, err := client.Plugins.DownloadURL(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("download plugin: %w", err)
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), download)
			}
			fmt.Fprintln(cmd.OutOrStdout(), download.URL)
			return nil
		},
	}
}
