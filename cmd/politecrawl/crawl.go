package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arclane/politecrawl/internal/clock"
	"github.com/arclane/politecrawl/internal/config"
	"github.com/arclane/politecrawl/internal/crawlwork"
	"github.com/arclane/politecrawl/internal/dedup"
	"github.com/arclane/politecrawl/internal/demosink"
	"github.com/arclane/politecrawl/internal/fetcher"
	"github.com/arclane/politecrawl/internal/frontier"
	"github.com/arclane/politecrawl/internal/headerpolicy"
	"github.com/arclane/politecrawl/internal/scheduler"
	"github.com/arclane/politecrawl/internal/snapshot"
	"github.com/arclane/politecrawl/internal/statssink"
	"github.com/arclane/politecrawl/internal/ttlmap"
)

// maxTries is the number of failed fetches after which the demo CLI
// drops an item instead of requeueing it (spec §4.1's UpdatePriority
// drift), so an item is requeued at most maxTries-1 times.
const maxTries = 3

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl one or more seed URLs",
		Long:  "Start a polite crawl from the given seed URL(s), following links within the configured depth and budget.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCrawl,
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "number of concurrent workers (0 = use config)")
	cmd.Flags().Float64Var(&maxHostQPS, "max-host-qps", 0, "global per-host request rate (0 = use config)")
	cmd.Flags().IntVar(&maxURLs, "max-urls", 0, "maximum total URLs to crawl (0 = use config)")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI; when set, discovered links are also written to MongoDB")
	cmd.Flags().StringVar(&mongoDB, "mongo-database", "politecrawl", "MongoDB database name")
	cmd.Flags().StringVar(&mongoColl, "mongo-collection", "links", "MongoDB collection name")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the configured snapshot file if present")

	return cmd
}

// runCrawl wires config -> scheduler -> fetcher -> link extraction ->
// demosink -> snapshot, per SPEC_FULL §5.
func runCrawl(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seeds := make([]*url.URL, 0, len(args))
	for _, raw := range args {
		if err := config.ValidateURL(raw); err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", raw, err)
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", raw, err)
		}
		seeds = append(seeds, u)
	}

	logger.Info("starting crawl",
		"seeds", len(seeds),
		"max_host_qps", cfg.Crawl.MaxHostQPS,
		"max_crawled_urls", cfg.Crawl.MaxCrawledUrls,
		"concurrency", cfg.Crawl.Concurrency,
	)

	clk := clock.System{}
	f := frontier.New()
	next := ttlmap.NewDefault()
	stats := statssink.New(logger)
	sched := scheduler.New(logger, clk, f, next, stats, cfg.Crawl.MaxHostQPS, cfg.Crawl.MaxCrawledUrls)

	if cfg.Metrics.Enabled {
		startMetricsServer(logger, stats, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	seedStrings := make([]string, len(seeds))
	for i, u := range seeds {
		seedStrings[i] = u.String()
	}

	if resume {
		if _, _, err := snapshot.Load(cfg.Snapshot.Path, f); err != nil {
			logger.Warn("snapshot not restored, starting fresh", "path", cfg.Snapshot.Path, "error", err)
		} else {
			logger.Info("resumed from snapshot", "path", cfg.Snapshot.Path)
		}
	}

	for _, u := range seeds {
		key := crawlwork.SURT(u)
		if _, ok := sched.GetRidealong(key); ok {
			continue
		}
		sched.SetRidealong(key, crawlwork.Ridealong{URL: u.String(), Depth: 0, CreatedAt: time.Now()})
		sched.QueueWork(crawlwork.WorkItem{Priority: 0, Rand: rand.Float64(), Key: key})
	}

	proxyURL, err := parseProxy(cfg.Fetcher.ProxyAll)
	if err != nil {
		return fmt.Errorf("invalid fetcher.proxy_all: %w", err)
	}
	headers, proxy, _ := headerpolicy.Derive(headerpolicy.Policy{
		UserAgent:               cfg.Crawl.UserAgent,
		CompressionDisabled:     cfg.Crawl.CompressionDisabled,
		UpgradeInsecureRequests: cfg.Crawl.UpgradeInsecureRequests,
		ProxyAll:                proxyURL,
		ProxyGeoIP:              cfg.GeoIP.ProxyGeoIP,
	})

	sess := fetcher.NewSession(cfg.Fetcher.RequestTimeout, cfg.Fetcher.TLSInsecure)

	sink, err := buildSink(logger)
	if err != nil {
		return fmt.Errorf("build output sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logger.Error("sink close failed", "error", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupted := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, pausing crawl", "signal", sig)
		close(interrupted)
		cancel()
	}()

	seen := dedup.NewTracker(cfg.Crawl.MaxCrawledUrls)
	for _, s := range seedStrings {
		seen.MarkIfNew(s)
	}

	work := func(ctx context.Context, item crawlwork.WorkItem) error {
		return processItem(ctx, sched, sess, stats, sink, seen, headers, proxy, cfg, item)
	}

	start := time.Now()
	runErr := sched.Run(ctx, concurrencyOrDefault(cfg), work)

	select {
	case <-interrupted:
		if cfg.Snapshot.SaveOnInterrupt {
			if err := snapshot.Save(cfg.Snapshot.Path, f, seedStrings, configDigest(cfg)); err != nil {
				logger.Error("snapshot save failed", "error", err)
			} else {
				logger.Info("snapshot saved", "path", cfg.Snapshot.Path)
			}
		}
	default:
		if closeErr := sched.Close(context.Background()); closeErr != nil {
			logger.Warn("scheduler close did not quiesce cleanly", "error", closeErr)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("crawl worker pool exited with error", "error", runErr)
	}

	report, sumErr := sched.Summarize()
	fmt.Println(report)
	if sumErr != nil {
		logger.Error("fatal: frontier/ridealong invariant broken", "error", sumErr)
		os.Exit(1)
	}

	elapsed := time.Since(start)
	snap := stats.Snapshot()
	var fetchErrors int64
	for name, n := range snap {
		if strings.HasPrefix(name, "sum.fetcher.error.") {
			fetchErrors += n
		}
	}
	logger.Info("crawl complete",
		"elapsed", elapsed,
		"errors", fetchErrors,
		"budget_exhausted", snap["sum.scheduler.budget_exhausted"],
	)
	return nil
}

// processItem fetches one dispensed item, extracts and enqueues its
// links, writes the discovered links to sink, and requeues the item on
// a classified failure up to maxTries (spec §4.1's requeueWork path).
func processItem(ctx context.Context, sched *scheduler.Scheduler, sess *fetcher.Session, stats statssink.Sink, sink demosink.Sink, seen *dedup.Tracker, headers http.Header, proxy *url.URL, cfg *config.Config, item crawlwork.WorkItem) error {
	ride, ok := sched.GetRidealong(item.Key)
	if !ok {
		return nil
	}

	target, err := url.Parse(ride.URL)
	if err != nil {
		sched.DelRidealong(item.Key)
		return nil
	}

	resp, err := fetcher.Fetch(ctx, sess, fetcher.Request{
		Target:         target,
		Headers:        headers,
		Proxy:          proxy,
		AllowRedirects: cfg.Fetcher.FollowRedirects,
		MaxRedirects:   cfg.Fetcher.MaxRedirects,
		StatsPrefix:    "fetcher",
		MaxPageSize:    cfg.Fetcher.MaxPageSize,
	}, stats)
	if err != nil {
		return err
	}

	if !resp.OK() && len(resp.Body) == 0 {
		return requeueOrDrop(sched, stats, item, ride)
	}

	sched.DelRidealong(item.Key)

	if len(resp.Body) == 0 {
		return nil
	}

	links := extractLinks(resp.Body, target, ride.Depth+1)
	if len(links) > 0 {
		if err := sink.Store(links); err != nil {
			stats.StatsSum("demo.sink_error", 1)
		}
	}

	if cfg.Crawl.MaxDepth > 0 && ride.Depth+1 > cfg.Crawl.MaxDepth {
		return nil
	}
	for _, link := range links {
		if !seen.MarkIfNew(link.LinkURL) {
			continue
		}
		linkURL, err := url.Parse(link.LinkURL)
		if err != nil {
			continue
		}
		key := crawlwork.SURT(linkURL)
		sched.SetRidealong(key, crawlwork.Ridealong{
			URL: link.LinkURL, Priority: 0, ParentURL: target.String(),
			Depth: ride.Depth + 1, CreatedAt: time.Now(),
		})
		sched.QueueWork(crawlwork.WorkItem{Priority: 0, Rand: rand.Float64(), Key: key})
	}
	return nil
}

func requeueOrDrop(sched *scheduler.Scheduler, stats statssink.Sink, item crawlwork.WorkItem, ride crawlwork.Ridealong) error {
	ride.Tries++
	if ride.Tries >= maxTries {
		stats.StatsSum("demo.dropped_after_retries", 1)
		sched.DelRidealong(item.Key)
		return nil
	}
	sched.SetRidealong(item.Key, ride)
	priority, rnd := sched.UpdatePriority(item.Priority, item.Rand+0.5)
	sched.RequeueWork(crawlwork.WorkItem{Priority: priority, Rand: rnd, Key: item.Key})
	return nil
}

func concurrencyOrDefault(cfg *config.Config) int {
	if concurrency > 0 {
		return concurrency
	}
	return cfg.Crawl.Concurrency
}

func applyCLIOverrides(cfg *config.Config) {
	if concurrency > 0 {
		cfg.Crawl.Concurrency = concurrency
	}
	if maxHostQPS > 0 {
		cfg.Crawl.MaxHostQPS = maxHostQPS
	}
	if maxURLs > 0 {
		cfg.Crawl.MaxCrawledUrls = maxURLs
	}
}

func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	return url.Parse(raw)
}

func buildSink(logger *slog.Logger) (demosink.Sink, error) {
	jsonl := demosink.NewJSONLSink(os.Stdout, logger)
	if mongoURI == "" {
		return jsonl, nil
	}
	mongo, err := demosink.NewMongoSink(mongoURI, mongoDB, mongoColl, logger)
	if err != nil {
		return nil, err
	}
	return demosink.NewMultiSink(logger, jsonl, mongo), nil
}

// configDigest is a short identifier stamped into the snapshot header
// (spec §4.5). A resumed run does not compare it against the current
// configuration.
func configDigest(cfg *config.Config) string {
	return fmt.Sprintf("qps=%.3f/depth=%d/budget=%d", cfg.Crawl.MaxHostQPS, cfg.Crawl.MaxDepth, cfg.Crawl.MaxCrawledUrls)
}

func startMetricsServer(logger *slog.Logger, stats *statssink.Atomic, port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, stats)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
}
