// Command hive-feed prints an account's feed or notifications from the
// terminal. It doubles as a smoke test for the full read path: endpoint
// pool, cache, pagination and history scan.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hive-client/cache"
	"hive-client/config"
	"hive-client/fetch"
	"hive-client/notify"
	"hive-client/rpc"
	"hive-client/social"
)

func initLogger() {
	var level slog.Level
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	var (
		configPath = flag.String("config", "", "path to config JSON")
		account    = flag.String("account", "", "account name")
		stream     = flag.String("stream", "trending", "trending | created | blog | feed | notifications")
		tag        = flag.String("tag", "", "tag filter for ranked streams")
		pages      = flag.Int("pages", 1, "number of pages to print")
	)
	flag.Parse()
	initLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rpc.New(rpc.Config{
		Endpoints:     cfg.Endpoints,
		RetryBudget:   cfg.RetryBudget,
		CallTimeout:   cfg.CallTimeout(),
		RatePerSecond: cfg.RatePerSecond,
	})
	if err != nil {
		slog.Error("endpoint pool", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("cache backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	store := cache.NewStore(backend, slog.Default())

	svc := social.NewService(client, store, nil, social.Options{
		PageSize: cfg.PageSize,
		TTL:      &cfg.TTL,
	})

	switch *stream {
	case "notifications":
		err = printNotifications(ctx, client, store, backend, cfg, *account)
	default:
		err = printDiscussions(ctx, svc, cfg, *stream, *tag, *account, *pages)
	}
	if err != nil {
		slog.Error("fetch failed", "stream", *stream, "error", err)
		os.Exit(1)
	}
}

// openBackend picks Redis when configured, SQLite when a data path is
// set, and in-process memory otherwise.
func openBackend(ctx context.Context, cfg config.Config) (cache.Backend, error) {
	if cfg.RedisURL != "" {
		return cache.NewRedisBackend(ctx, cfg.RedisURL)
	}
	if cfg.DataPath != "" {
		return cache.NewSQLiteBackend(cfg.DataPath)
	}
	return cache.NewMemoryBackend(10000, time.Minute), nil
}

func printDiscussions(ctx context.Context, svc *social.Service, cfg config.Config, stream, tag, account string, pages int) error {
	var pager *fetch.Pager[social.Discussion]
	switch stream {
	case "trending":
		pager = svc.TrendingPager(tag)
	case "created":
		pager = svc.CreatedPager(tag)
	case "blog":
		if account == "" {
			return fmt.Errorf("blog stream needs -account")
		}
		pager = svc.BlogPager(account)
	case "feed":
		if account == "" {
			return fmt.Errorf("feed stream needs -account")
		}
		pager = svc.FeedPager(account)
	default:
		return fmt.Errorf("unknown stream %q", stream)
	}

	cursor := fetch.Cursor{}
	for i := 0; i < pages; i++ {
		page, err := pager.NextPage(ctx, cursor)
		if err != nil {
			return err
		}
		for _, d := range page.Items {
			fmt.Printf("%-50s  %s  (%d replies, %d votes)\n",
				truncate(d.Title, 50), d.Ref(), d.Children, d.NetVotes)
		}
		if !page.HasMore {
			break
		}
		cursor = page.Next
	}
	return nil
}

func printNotifications(ctx context.Context, client *rpc.Client, store *cache.Store, backend cache.Backend, cfg config.Config, account string) error {
	if account == "" {
		return fmt.Errorf("notifications need -account")
	}
	scanner := notify.NewScanner(client, store, notify.NewBackendReadStore(backend), cfg.TTL.NotificationFeed)
	scanner.BatchSize = cfg.HistoryBatch
	scanner.MaxIterations = cfg.HistoryMaxIterations

	feed, err := scanner.Feed(ctx, account)
	if err != nil {
		return err
	}
	for _, n := range feed {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s %-8s %-20s %s  %s\n",
			marker, n.Type, n.Actor, n.Subject, n.Timestamp.Format(time.RFC3339))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
