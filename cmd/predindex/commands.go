package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/predindex"
	"github.com/poiesic/predindex/config"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/ingestion"
	"github.com/poiesic/predindex/reembed"
	"github.com/poiesic/predindex/search"
	"github.com/poiesic/predindex/server"
	"github.com/poiesic/predindex/source"
	"github.com/poiesic/predindex/storage/milvus"
)

var errInterrupted = errors.New("interrupted")

// openDatabase opens the stores named by cfg.
func openDatabase(ctx context.Context, cfg *config.Config) (*predindex.Database, error) {
	opts := []predindex.DatabaseOption{predindex.WithAIConfig(cfg.AI())}
	if cfg.VectorStore.Backend == config.BackendMilvus {
		mc := cfg.VectorStore.Milvus
		vectors, err := milvus.Open(ctx, milvus.Config{
			Address:          mc.Address,
			Username:         mc.Username,
			Password:         mc.Password,
			DBName:           mc.DBName,
			CollectionPrefix: mc.CollectionPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to milvus: %w", err)
		}
		opts = append(opts, predindex.WithVectorStore(vectors))
	}

	db, err := predindex.NewDatabase(cfg.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// interruptible returns a context and cancel check driven by SIGINT and
// SIGTERM. The first signal trips the check so tasks stop at the next page
// boundary; the second cancels the context.
func interruptible(parent context.Context) (context.Context, ingestion.CancelCheck, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	var stopping atomic.Bool
	go func() {
		for {
			select {
			case <-sigs:
				if stopping.Swap(true) {
					cancel()
					return
				}
				slog.Warn("stopping after the current page; interrupt again to abort")
			case <-ctx.Done():
				return
			}
		}
	}()

	check := func() error {
		if stopping.Load() {
			return errInterrupted
		}
		return nil
	}
	return ctx, check, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func parseSources(names []string) ([]core.Source, error) {
	var out []core.Source
	for _, name := range names {
		for part := range strings.SplitSeq(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			src, err := core.ParseSource(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, part)
			}
			out = append(out, src)
		}
	}
	return out, nil
}

// parseKinds maps an optional kind flag to the kinds it selects.
func parseKinds(s string) ([]core.RecordKind, error) {
	if strings.TrimSpace(s) == "" {
		return core.RecordKinds, nil
	}
	kind, err := core.ParseRecordKind(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, s)
	}
	return []core.RecordKind{kind}, nil
}

func ingestCommand(c *cli.Context) error {
	cfg := configFrom(c)

	sources, err := parseSources(c.StringSlice("source"))
	if err != nil {
		return err
	}
	filter := cfg.Filter(sources...)
	if c.IsSet("status") {
		filter.Statuses = c.StringSlice("status")
	}
	if c.IsSet("max-pages") {
		filter.MaxPages = c.Int("max-pages")
	}
	filter.Resume = c.Bool("resume")

	workers := cfg.Ingestion.EmbedWorkers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}

	ctx, check, stop := interruptible(c.Context)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []ingestion.Option{ingestion.WithPolicy(cfg.Policy())}
	if workers > 0 {
		opts = append(opts, ingestion.WithPoolSize(workers))
	}
	engine, err := db.NewIngestionEngine(cfg.Adapters(slog.Default()), opts...)
	if err != nil {
		return err
	}
	defer engine.Release()

	report, err := engine.RunAll(ctx, filter, check)
	if report != nil {
		printReport(c.App.Writer, report)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func printReport(w io.Writer, report *ingestion.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TASK\tSTATE\tREASON\tPAGES\tRECORDS\tRETRIES\n")
	for _, s := range report.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", s.Task.Key(), s.State, s.Reason, s.Pages, s.Records, s.Retries)
	}
	tw.Flush()
	fmt.Fprintf(w, "run %s: %d records in %s\n", report.RunID, report.Records(), report.Elapsed.Round(time.Millisecond))
}

// traceMonitor logs each search stage at debug level.
type traceMonitor struct {
	logger *slog.Logger
}

func (m traceMonitor) Start(kind core.RecordKind, query string) {
	m.logger.Debug("search started", "kind", kind, "query", query)
}

func (m traceMonitor) AfterVectorSearch(results []*core.SearchResult) {
	m.logger.Debug("vector search", "hits", len(results))
}

func (m traceMonitor) KeywordHit(r *core.SearchResult) {
	m.logger.Debug("keyword boost", "id", r.Record.ID, "score", r.Score)
}

func (m traceMonitor) AfterHydration(found, missing int) {
	m.logger.Debug("hydrated", "found", found, "missing", missing)
}

func (m traceMonitor) Finish(results []*core.SearchResult) {
	m.logger.Debug("search finished", "results", len(results))
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("query is required")
	}
	kind, err := core.ParseRecordKind(c.String("kind"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	var monitor search.SearchMonitor
	if c.Bool("trace") {
		monitor = traceMonitor{logger: slog.Default()}
	}
	results, err := searcher.FindSimilarWithMonitor(ctx, kind, query, c.Int("limit"), monitor)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(w, "%d: [%0.3f] %s  %s\n", i+1, hit.Score, hit.Record.ID, hit.Record.Title)
		if hit.Details != nil && hit.Details.Status != "" {
			fmt.Fprintf(w, "   status: %s\n", hit.Details.Status)
		}
		if hit.Record.URL != "" {
			fmt.Fprintf(w, "   %s\n", hit.Record.URL)
		}
	}
	return nil
}

func correlateCommand(c *cli.Context) error {
	from, err := core.ParseSource(c.String("from"))
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := core.ParseSource(c.String("to"))
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	w := c.App.Writer
	opts := search.CorrelateOptions{
		From:      from,
		To:        to,
		Threshold: float32(c.Float64("threshold")),
		Limit:     c.Int("limit"),
	}
	return searcher.Correlate(ctx, opts, func(m search.Match) error {
		fmt.Fprintf(w, "[%0.3f] %s %q\n        %s %q\n", m.Score, m.From.EmbeddingID(), m.From.Title, m.To.ID, m.To.Title)
		return nil
	})
}

func quoteCommand(c *cli.Context) error {
	ticker := strings.TrimSpace(c.Args().First())
	if ticker == "" {
		return errors.New("ticker is required")
	}
	src := core.SourceUnknown
	if c.IsSet("source") {
		var err error
		if src, err = core.ParseSource(c.String("source")); err != nil {
			return fmt.Errorf("--source: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := source.NewRegistry(configFrom(c).Adapters(slog.Default())...)
	q, err := registry.Quote(ctx, ticker, src)
	if err != nil {
		return err
	}
	printQuote(c.App.Writer, q)
	return nil
}

func printQuote(w io.Writer, q *core.Quote) {
	side := func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "-"
		}
		return d.Decimal.String()
	}
	fmt.Fprintf(w, "%s %s
", q.Source, q.Ticker)
	fmt.Fprintf(w, "  price:  %s
", q.Price)
	fmt.Fprintf(w, "  bid:    %s
", side(q.Bid))
	fmt.Fprintf(w, "  ask:    %s
", side(q.Ask))
	if q.Volume.Valid {
		fmt.Fprintf(w, "  volume: %s
", q.Volume.Decimal)
	}
	fmt.Fprintf(w, "  as of:  %s
", q.Timestamp.Format(time.RFC3339))
}

func reindexCommand(c *cli.Context) error {
	kinds, err := parseKinds(c.String("kind"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer db.Close()

	builder, err := ingestion.NewIndexBuilder(db.VectorStore(), slog.Default())
	if err != nil {
		return err
	}
	for _, kind := range kinds {
		if err := builder.RebuildIndex(ctx, kind); err != nil {
			return fmt.Errorf("rebuild %s index: %w", kind, err)
		}
		fmt.Fprintf(c.App.Writer, "Rebuilt %s index\n", kind)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	kinds, err := parseKinds(c.String("kind"))
	if err != nil {
		return err
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxAttempts:    c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxAttempts <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFrom(c)
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Data dir: %s\n", cfg.DataDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	for _, kind := range kinds {
		if _, err := reembedder.Run(ctx, kind); err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	if !slog.Default().Enabled(c.Context, slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}
	srv, err := server.New(searcher, db.TableStore(),
		server.WithLogger(slog.Default()),
		server.WithQuoter(source.NewRegistry(cfg.Adapters(slog.Default())...)),
	)
	if err != nil {
		return err
	}
	return srv.Run(ctx, addr)
}
