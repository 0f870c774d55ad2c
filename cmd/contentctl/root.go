package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"content-gateway/internal/adapters/cms"
	"content-gateway/internal/domain"
	"content-gateway/internal/usecase/feed"
	"content-gateway/internal/usecase/home"
	"content-gateway/internal/usecase/translate"
)

const defaultPageSize = 10

// env — сервисы, с которыми работают команды.
type env struct {
	home          *home.Service
	translate     *translate.Service
	content       domain.ContentSource
	board         domain.BoardFeed
	loc           *time.Location
	boardPageSize int
	log           zerolog.Logger
}

type envLoader func(ctx context.Context) (*env, func(), error)

type queueOpener func(ctx context.Context) (domain.ChatEventQueue, error)

func newRootCmd(load envLoader, open queueOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "contentctl",
		Short:        "Operator tool for the content gateway caches and feeds",
		SilenceUsage: true,
	}

	withEnv := func(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return run(cmd, args, e)
		}
	}

	root.AddCommand(
		newHomeCmd(withEnv),
		newNewsCmd(withEnv),
		newBrowseCmd(withEnv),
		newCategoriesCmd(withEnv),
		newTranslateCmd(withEnv),
		newCacheCmd(withEnv),
		newPublishCmd(open),
	)
	return root
}

type runner func(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error

func newHomeCmd(withEnv runner) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Show home sections and slideshow",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			printResult(cmd.OutOrStdout(), e.home.Home(cmd.Context(), force))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the cached snapshot")
	return cmd
}

func newNewsCmd(withEnv runner) *cobra.Command {
	var (
		force bool
		date  string
	)
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Show news sections for a day (today by default)",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			q := home.NewsQuery{Force: force}
			if date != "" {
				day, err := parseDay(date, e.loc)
				if err != nil {
					return err
				}
				q.Date = &day
			}
			printResult(cmd.OutOrStdout(), e.home.News(cmd.Context(), q))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the cached snapshot")
	cmd.Flags().StringVar(&date, "date", "", "day in YYYY-MM-DD")
	return cmd
}

func newBrowseCmd(withEnv runner) *cobra.Command {
	var (
		pages    int
		pageSize int
		date     string
	)
	browse := &cobra.Command{
		Use:   "browse",
		Short: "Page through a category, search results or the board feed",
	}
	browse.PersistentFlags().IntVar(&pages, "pages", 1, "number of pages to load")

	category := &cobra.Command{
		Use:   "category <id>",
		Short: "Page through one CMS category",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("category id must be a positive integer: %q", args[0])
			}
			var day *time.Time
			if date != "" {
				d, err := parseDay(date, e.loc)
				if err != nil {
					return err
				}
				day = &d
			}
			return browsePages(cmd, e, "category", pageSize, pages, feed.CategoryLoader(e.content, id, day))
		}),
	}
	category.Flags().IntVar(&pageSize, "per-page", defaultPageSize, "page size")
	category.Flags().StringVar(&date, "date", "", "only posts of this day, YYYY-MM-DD")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Page through search results",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query is empty")
			}
			return browsePages(cmd, e, "search", cms.SearchPageSize, pages, feed.SearchLoader(e.content, query))
		}),
	}

	board := &cobra.Command{
		Use:   "board",
		Short: "Page through the board RSS feed",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			size := e.boardPageSize
			if size <= 0 {
				size = defaultPageSize
			}
			return browsePages(cmd, e, "board", size, pages, feed.BoardLoader(e.board))
		}),
	}

	browse.AddCommand(category, search, board)
	return browse
}

func browsePages(cmd *cobra.Command, e *env, name string, pageSize, pages int, load feed.Loader) error {
	if pages <= 0 {
		return fmt.Errorf("--pages must be positive")
	}
	pager, err := feed.NewPager(name, pageSize, load, e.log)
	if err != nil {
		return err
	}
	res, err := pager.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	for i := 1; i < pages && res.HasMore; i++ {
		if res, err = pager.LoadMore(cmd.Context()); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	for _, p := range res.Posts {
		printPost(out, "", p)
	}
	fmt.Fprintf(out, "%d post(s), pages loaded: %d, more: %t\n", len(res.Posts), pager.Page(), res.HasMore)
	return nil
}

func newCategoriesCmd(withEnv runner) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List CMS categories",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			cats, err := e.content.Categories(cmd.Context(), 100)
			if err != nil {
				return fmt.Errorf("loading categories: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, c := range cats {
				fmt.Fprintf(out, "%6d  %-32s %s (%d)\n", c.ID, c.Name, c.Slug, c.Count)
			}
			return nil
		}),
	}
}

func newTranslateCmd(withEnv runner) *cobra.Command {
	var target, source string
	cmd := &cobra.Command{
		Use:   "translate <text>...",
		Short: "Translate strings through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			if target == "" {
				return errors.New("--target is required")
			}
			out := cmd.OutOrStdout()
			if source != "" {
				for _, text := range args {
					fmt.Fprintln(out, e.translate.Translate(cmd.Context(), text, target, source))
				}
				return nil
			}
			for _, text := range e.translate.TranslateMany(cmd.Context(), args, target) {
				fmt.Fprintln(out, text)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&target, "target", "", "target language code")
	cmd.Flags().StringVar(&source, "source", "", "source language code")
	return cmd
}

func newCacheCmd(withEnv runner) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached snapshots and translations",
	}
	clearCmd := &cobra.Command{
		Use:       "clear [translations|snapshots|all]",
		Short:     "Delete cached entries",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"translations", "snapshots", "all"},
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			what := "all"
			if len(args) == 1 {
				what = args[0]
			}
			out := cmd.OutOrStdout()
			if what == "translations" || what == "all" {
				n, err := e.translate.ClearCache(cmd.Context())
				if err != nil {
					return fmt.Errorf("clearing translations: %w", err)
				}
				fmt.Fprintf(out, "Cleared %d translation(s).\n", n)
			}
			if what == "snapshots" || what == "all" {
				n, err := e.home.ClearSnapshots(cmd.Context())
				if err != nil {
					return fmt.Errorf("clearing snapshots: %w", err)
				}
				fmt.Fprintf(out, "Cleared %d snapshot(s).\n", n)
			}
			return nil
		}),
	}
	cache.AddCommand(clearCmd)
	return cache
}

func newPublishCmd(open queueOpener) *cobra.Command {
	var msg domain.ChatMessage
	cmd := &cobra.Command{
		Use:   "publish-message",
		Short: "Publish a chat message event for the notifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if msg.ChatID == "" {
				return errors.New("--chat is required")
			}
			q, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer q.Close()
			msg.CreatedAt = time.Now().UTC()
			if err := q.Publish(cmd.Context(), msg); err != nil {
				return fmt.Errorf("publishing: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published message to chat %s.\n", msg.ChatID)
			return nil
		},
	}
	cmd.Flags().StringVar(&msg.ChatID, "chat", "", "chat id")
	cmd.Flags().StringVar(&msg.SenderID, "sender", "", "sender user id")
	cmd.Flags().StringVar(&msg.Text, "text", "", "message text")
	cmd.Flags().StringVar(&msg.ImageURL, "image", "", "image url")
	return cmd
}

func parseDay(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD", raw)
	}
	return day, nil
}

func printResult(out io.Writer, res home.Result) {
	state := "fresh"
	switch {
	case res.Stale:
		state = "stale"
	case res.FromCache:
		state = "cached"
	}
	header := fmt.Sprintf("%d section(s), %d slide(s), %s", len(res.Sections), len(res.Slideshow), state)
	if res.ShowingYesterday {
		header += ", showing yesterday"
	}
	fmt.Fprintln(out, header)
	for _, s := range res.Sections {
		fmt.Fprintf(out, "\n[%s] %s\n", s.Key, s.Name)
		for _, p := range s.Posts {
			printPost(out, "  ", p)
		}
	}
}

func printPost(out io.Writer, indent string, p domain.Post) {
	fmt.Fprintf(out, "%s%-16s %s\n", indent, p.ID, p.Title)
}
