package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/client"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/inspector"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/prompt"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/render"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/store"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/util"
)

// NewRootCommand builds the cwtail command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	if app.Options == nil {
		app.Options = DefaultOptions()
	}
	var favorite, keyword string

	root := &cobra.Command{
		Use:   "cwtail",
		Short: "Find, filter and tail AWS CloudWatch log groups",
		Long: "cwtail searches CloudWatch log groups, filters their events and streams\n" +
			"new events through `aws logs tail --follow`.\n\n" +
			"Quick tail a favorite: cwtail -f <keyword> [-k <pattern>]",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if favorite == "" {
				if keyword != "" {
					return errors.New("--keyword requires --favorite")
				}
				return cmd.Help()
			}
			group, err := app.Store.Favorite(favorite)
			if err != nil {
				return err
			}
			return app.tail(cmd.Context(), group, keyword)
		},
	}
	app.Options.AddFlags(root.PersistentFlags())
	root.Flags().StringVarP(&favorite, "favorite", "f", "", "tail the log group saved under this favorite keyword")
	root.Flags().StringVarP(&keyword, "keyword", "k", "", "filter pattern for the quick tail")

	root.AddCommand(
		newSearchCommand(app),
		newFilterCommand(app),
		newFavoriteCommand(app),
		newListFavoritesCommand(app),
		newRemoveFavoriteCommand(app),
		newRecentCommand(app),
	)
	return root
}

func newSearchCommand(app *App) *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search log groups by name (or favorite keyword), pick one and tail it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			interactive := app.Interactive()

			var query string
			if len(args) > 0 {
				query = args[0]
			} else if interactive {
				q, err := app.Prompter.Input("Search log groups (empty lists all):", nil)
				if err != nil {
					return err
				}
				query = q
			}

			if query != "" {
				group, err := app.Store.Favorite(query)
				var nf *store.NotFoundError
				switch {
				case err == nil:
					app.Logger.Debug("search matched favorite", "keyword", query, "log_group", group)
					return app.tailWithPrompt(ctx, group, interactive)
				case !errors.As(err, &nf):
					return err
				}
			}

			backend, err := app.NewBackend(ctx, 0)
			if err != nil {
				return err
			}
			groups, err := backend.DescribeLogGroups(ctx, query, limit)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No log groups found matching %q.\n", query)
				return nil
			}
			if !interactive {
				render.Groups(cmd.OutOrStdout(), groups, app.Now())
				return nil
			}

			names := make([]string, len(groups))
			for i, g := range groups {
				names[i] = g.Name
			}
			idx, err := app.Prompter.Select("Select a log group to tail:", names)
			if err != nil {
				return err
			}
			return app.tailWithPrompt(ctx, names[idx], interactive)
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", client.DefaultGroupLimit, "maximum number of log groups to list")
	return cmd
}

const newPatternOption = "Enter a new pattern"

// tailWithPrompt asks for an optional filter pattern, then tails group.
func (a *App) tailWithPrompt(ctx context.Context, group string, interactive bool) error {
	var pattern string
	if interactive {
		p, err := a.askPattern()
		if err != nil {
			return err
		}
		pattern = p
	}
	return a.tail(ctx, group, pattern)
}

func (a *App) askPattern() (string, error) {
	add, err := a.Prompter.Confirm("Add a filter pattern?", false)
	if err != nil || !add {
		return "", err
	}
	recent, err := a.Store.RecentSearches()
	if err != nil {
		return "", err
	}
	if len(recent) > 0 {
		options := append([]string{newPatternOption}, recent...)
		idx, err := a.Prompter.Select("Filter pattern:", options)
		if err != nil {
			return "", err
		}
		if idx > 0 {
			return options[idx], nil
		}
	}
	return a.Prompter.Input("Enter filter pattern:", prompt.NonEmpty)
}

func newFilterCommand(app *App) *cobra.Command {
	var startStr, endStr, output, query string
	var limit, workers int
	cmd := &cobra.Command{
		Use:   "filter <logGroupOrFavorite>[,...] <pattern>",
		Short: "Print log events matching a filter pattern within a time range",
		Long: "Print log events matching a CloudWatch filter pattern.\n\n" +
			"Times accept Nm (N minutes ago) or a timestamp such as 2025-08-30T15:04:05Z.\n" +
			"The end time defaults to now and the start time to 24h before the end.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pattern := args[1]

			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}
			var proj *util.Projector
			if query != "" {
				if proj, err = util.CompileProjection(query); err != nil {
					return err
				}
			}
			start, end, err := ResolveTimeRange(startStr, endStr, app.Now())
			if err != nil {
				return fmt.Errorf("invalid time range: %w", err)
			}

			var groups []string
			for _, g := range ParseGroupsCSV(args[0]) {
				resolved, err := app.resolveGroup(g)
				if err != nil {
					return err
				}
				groups = append(groups, resolved)
			}
			if len(groups) == 0 {
				return errors.New("no log group given")
			}

			if err := app.Store.SaveRecentSearch(pattern); err != nil {
				return fmt.Errorf("save recent search: %w", err)
			}

			backend, err := app.NewBackend(ctx, limit)
			if err != nil {
				return err
			}
			insp := inspector.New(backend, groups, start, end)
			insp.SetWorkers(workers)
			app.Logger.Debug("filtering log events", "groups", groups, "pattern", pattern, "start", start, "end", end)
			records, err := insp.Search(ctx, pattern)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No events found for pattern `%s` between %s and %s.\n",
					pattern, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
				return nil
			}
			return render.Records(cmd.OutOrStdout(), records, format, proj)
		},
	}
	cmd.Flags().StringVarP(&startStr, "start-time", "s", "", "start of the range: Nm or a timestamp (default: 24h before end)")
	cmd.Flags().StringVarP(&endStr, "end-time", "e", "", "end of the range: Nm or a timestamp (default: now)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "maximum events per log group (0 for no limit)")
	cmd.Flags().IntVar(&workers, "concurrency", inspector.DefaultWorkers, "log groups searched concurrently")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().StringVar(&query, "query", "", "JMESPath applied to each message (JSON, or {message: raw})")
	return cmd
}

func newFavoriteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "favorite <keyword> <logGroupName>",
		Aliases: []string{"fav"},
		Short:   "Save a log group under a short keyword",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.AddFavorite(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved favorite %q -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newListFavoritesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list-favorites",
		Aliases: []string{"ls"},
		Short:   "List saved favorites",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			favs, err := app.Store.Favorites()
			if err != nil {
				return err
			}
			render.Favorites(cmd.OutOrStdout(), favs)
			return nil
		},
	}
}

func newRemoveFavoriteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove-favorite <keyword>",
		Aliases: []string{"rm"},
		Short:   "Remove a saved favorite",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.RemoveFavorite(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed favorite %q\n", args[0])
			return nil
		},
	}
}

func newRecentCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "Show recent filter patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recent, err := app.Store.RecentSearches()
			if err != nil {
				return err
			}
			render.Recent(cmd.OutOrStdout(), recent)
			return nil
		},
	}
}
