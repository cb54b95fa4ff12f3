package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prodigyranking/ratingengine/internal/adapters/http/api"
	"github.com/prodigyranking/ratingengine/internal/adapters/http/swagger"
	"github.com/prodigyranking/ratingengine/internal/adapters/notify"
	"github.com/prodigyranking/ratingengine/internal/adapters/repository"
	"github.com/prodigyranking/ratingengine/internal/adapters/source"
	service "github.com/prodigyranking/ratingengine/internal/app"
	"github.com/prodigyranking/ratingengine/internal/config"
	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// engine bundles what every subcommand opens.
type engine struct {
	cfg   *config.Config
	store *repository.SQLiteStore
	src   *source.SQLiteSource
	svc   *service.Service
	log   logger.Logger
}

func (e *engine) Close() {
	if e.svc != nil {
		e.svc.Stop()
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn(context.Background(), "close store failed", logger.Error(err))
	}
}

// loadConfig loads configuration and applies its logging settings. Logs go
// to stderr so command output stays machine-readable.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat)), logger.WithOutput(os.Stderr)); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// openStore opens the database and the factor source reading from it.
func openStore(ctx context.Context) (*engine, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.Named("cli")

	store, err := repository.Open(cfg.DatabasePath, repository.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &engine{
		cfg:   cfg,
		store: store,
		src:   source.NewSQLite(store.DB(), source.WithLogger(log)),
		log:   log,
	}, nil
}

// openEngine opens the store and wires the rating service over it.
func openEngine(ctx context.Context) (*engine, error) {
	e, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	catalog, err := service.LoadCatalog(e.cfg.CatalogPath)
	if err != nil {
		e.Close()
		return nil, err
	}

	svc, err := service.New(catalog, e.src, e.store,
		service.WithLogger(logger.Get()),
		service.WithWorkerCount(e.cfg.WorkerCount),
		service.WithEngineVersion(e.cfg.EngineVersion),
		service.WithAnomalySampleLimit(e.cfg.AnomalySampleLimit),
		service.WithRefreshInterval(e.cfg.RefreshInterval()),
		service.WithNotifier(buildNotifier(e.cfg)),
	)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.svc = svc
	return e, nil
}

func buildNotifier(cfg *config.Config) *notify.Manager {
	var notifiers []notify.Notifier
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret))
	}
	return notify.NewManager(notifiers...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runRebuild(ctx context.Context, out io.Writer, asOf time.Time, dryRun, jsonOutput bool) error {
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	sum, err := e.svc.Rebuild(ctx, service.RebuildOptions{AsOf: asOf, DryRun: dryRun})
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, sum)
	}
	printRunSummary(out, &sum)
	if dryRun {
		return printRecords(out, sum.Records)
	}
	return nil
}

func printRunSummary(out io.Writer, sum *service.RunSummary) {
	state := "published"
	if !sum.Published {
		state = "not published"
	}
	fmt.Fprintf(out, "run %s (%s) as of %s: %d entities, %d anomalies, %s in %s\n",
		sum.RunID, sum.Mode, sum.AsOf.Format(model.DateLayout),
		sum.Entities, sum.Anomalies, state, sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "engine %s, catalog %s, weights %s\n", sum.EngineVersion, sum.CatalogVersion, sum.WeightsVersion)
}

// printRecords lists records best first, the order the leaderboard uses.
func printRecords(out io.Writer, records []model.RatingRecord) error {
	sorted := make([]model.RatingRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Overall != sorted[j].Overall {
			return sorted[i].Overall > sorted[j].Overall
		}
		return sorted[i].EntityID < sorted[j].EntityID
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tNAME\tTYPE\tOVERALL\tTOTAL")
	for i := range sorted {
		r := &sorted[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\n", r.EntityID, r.Name, r.SubType, r.Overall, r.GrandTotal)
	}
	return w.Flush()
}

func runCaptureSnapshot(ctx context.Context, out io.Writer, date time.Time) error {
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if date.IsZero() {
		date = time.Now()
	}
	res, err := e.svc.CaptureSnapshot(ctx, model.Day(date))
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintf(out, "snapshot %s already stored, skipped\n", res.ID)
		return nil
	}
	fmt.Fprintf(out, "snapshot %s stored for %d entities\n", res.ID, res.Entities)
	return nil
}

func runWeekly(ctx context.Context, out io.Writer, mode service.Mode, date time.Time, jsonOutput bool) error {
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.svc.Weekly(ctx, mode, date)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, res)
	}

	fmt.Fprintf(out, "weekly %s for %s\n", res.Mode, res.Date.Format(model.DateLayout))
	if res.Snapshot != nil {
		if res.Snapshot.Skipped {
			fmt.Fprintf(out, "snapshot %s already stored, skipped\n", res.Snapshot.ID)
		} else {
			fmt.Fprintf(out, "snapshot %s stored for %d entities\n", res.Snapshot.ID, res.Snapshot.Entities)
		}
	}
	if res.Run != nil {
		printRunSummary(out, res.Run)
	}
	return nil
}

func runAudit(ctx context.Context, out io.Writer, jsonOutput bool) error {
	e, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.store.LatestAudit(ctx)
	if errors.Is(err, repository.ErrNoPublishedRun) {
		fmt.Fprintln(out, "no published run yet (try: ratingengine rebuild)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load audit: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, report)
	}
	return printAudit(out, report)
}

func printAudit(out io.Writer, r *audit.Report) error {
	fmt.Fprintf(out, "run %s at %s: %d entities, %d anomalies\n",
		r.RunID, r.GeneratedAt.Format(time.RFC3339), r.Entities, r.Total())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACTOR\tCATEGORY\tMAX\tAPPLICABLE\tNON-ZERO\tCOVERAGE\tMIN\tMAX SEEN\tOVER CAP")
	for i := range r.Factors {
		f := &r.Factors[i]
		if !f.Enabled {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%d\t%d\t%.0f%%\t%.2f\t%.2f\t%d\n",
			f.FactorID, f.Category, f.MaxPoints, f.Applicable, f.NonZero,
			f.Coverage*100, f.Min, f.Max, f.OverCap)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if r.Total() == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANOMALY\tCOUNT")
	for _, kind := range model.AnomalyKinds() {
		if n := r.Count(kind); n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", kind, n)
		}
	}
	return w.Flush()
}

func runLeaderboard(ctx context.Context, out io.Writer, limit int, jsonOutput bool) error {
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.svc.Start(ctx); err != nil {
		return err
	}
	entries, err := e.svc.TopN(ctx, limit)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no published ratings (try: ratingengine rebuild)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tENTITY\tNAME\tTYPE\tBORN\tOVERALL")
	for _, en := range entries {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%d\n", en.Rank, en.EntityID, en.Name, en.SubType, en.BirthYear, en.Overall)
	}
	return w.Flush()
}

func runIngest(ctx context.Context, out io.Writer, path string) error {
	ds, err := source.LoadDataset(path)
	if err != nil {
		return err
	}

	e, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.src.Ingest(ctx, ds)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ingested %d entities, %d records, %d counter rows\n", res.Entities, res.Records, res.Counters)
	return nil
}

func runGenerate(out io.Writer, path string, opts source.GenerateOptions) error {
	ds := source.Generate(opts)
	if path == "" {
		return ds.Encode(out)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := ds.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintf(out, "wrote %d entities, %d records to %s\n", len(ds.Entities), len(ds.Records), path)
	return nil
}

func runServe(ctx context.Context, addr string) error {
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if addr == "" {
		addr = e.cfg.Addr
	}
	log := logger.Get()

	if err := e.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(e.svc, e.cfg.MaxLeaderboardLimit).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
