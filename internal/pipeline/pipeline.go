// Package pipeline runs the end-to-end flows: fetch, parse, map, partition,
// then either sync to the store or split into import files.
package pipeline

import (
	"context"
	"errors"
	"time"

	"catalogsync/internal/database"
	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/mapper"
	"catalogsync/internal/metrics"
	"catalogsync/internal/models"
	"catalogsync/internal/source"
	"catalogsync/internal/splitter"
	"catalogsync/internal/syncer"

	"github.com/google/uuid"
)

// ErrNoPlatform is returned by Sync when no shop credentials are configured.
var ErrNoPlatform = errors.New("shop credentials not configured")

// Fetcher yields the catalog file for a run.
type Fetcher interface {
	Fetch(ctx context.Context) (*source.File, error)
}

// Deps wires a Runner. Store, Events and Metrics are optional.
type Deps struct {
	Fetcher  Fetcher
	Parser   *source.Parser
	Mapper   *mapper.Mapper
	Engine   *syncer.Engine
	Store    *database.RunStore
	Events   *events.Publisher
	Metrics  *metrics.Collector
	Logger   *logger.Logger
	SplitDir string
	// ChunkSize is the default split size.
	ChunkSize int
}

type Runner struct {
	deps Deps
	now  func() time.Time
}

type SyncOptions struct {
	// Limit caps the number of sellable products sent. Zero means all.
	Limit int
}

type SplitOptions struct {
	ChunkSize int
	OutDir    string
}

// Report is what a finished (or failed) run leaves behind.
type Report struct {
	Run   *models.SyncRun
	Stats *models.Statistics
	Files []string
}

func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps, now: time.Now}
}

// Sync pushes every sellable product to the store. Record-level failures are
// counted, not returned; the error is only set when the run itself could not
// complete.
func (r *Runner) Sync(ctx context.Context, opts SyncOptions) (*Report, error) {
	report := r.begin(ctx, models.RunKindSync)
	if r.deps.Engine == nil {
		return report, r.fail(ctx, report, ErrNoPlatform)
	}

	sellable, err := r.load(ctx, report)
	if err != nil {
		return report, r.fail(ctx, report, err)
	}
	if opts.Limit > 0 && opts.Limit < len(sellable) {
		r.deps.Logger.Info("Limiting run to %d of %d sellable products", opts.Limit, len(sellable))
		sellable = sellable[:opts.Limit]
	}

	err = r.deps.Engine.Run(ctx, sellable, report.Stats, r.observers(report.Run.ID)...)
	if err != nil {
		if ctx.Err() != nil {
			r.finish(ctx, report, models.RunStatusCancelled, "interrupted")
			return report, err
		}
		return report, r.fail(ctx, report, err)
	}
	r.finish(ctx, report, models.RunStatusCompleted, "")
	return report, nil
}

// Split writes the sellable products as chunked import files instead of
// calling the store.
func (r *Runner) Split(ctx context.Context, opts SplitOptions) (*Report, error) {
	report := r.begin(ctx, models.RunKindSplit)
	size := opts.ChunkSize
	if size == 0 {
		size = r.deps.ChunkSize
	}
	dir := opts.OutDir
	if dir == "" {
		dir = r.deps.SplitDir
	}

	sellable, err := r.load(ctx, report)
	if err != nil {
		return report, r.fail(ctx, report, err)
	}

	w := splitter.NewWriter(dir, r.deps.Logger.Named("splitter"))
	files, err := w.Write(sellable, splitter.Summary{
		Sellable:  report.Stats.Sellable,
		Excluded:  report.Stats.OutOfStock,
		ChunkSize: size,
	})
	report.Files = files
	if err != nil {
		return report, r.fail(ctx, report, err)
	}
	r.finish(ctx, report, models.RunStatusCompleted, "")
	return report, nil
}

func (r *Runner) begin(ctx context.Context, kind models.RunKind) *Report {
	stats := models.NewStatistics()
	run := &models.SyncRun{
		Kind:      kind,
		Status:    models.RunStatusRunning,
		StartedAt: stats.StartedAt,
	}
	if r.deps.Store != nil {
		if err := r.deps.Store.CreateRun(context.WithoutCancel(ctx), run); err != nil {
			r.deps.Logger.Warn("Run ledger unavailable: %v", err)
		}
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	r.deps.Logger.Info("Starting %s run %s", kind, run.ID)
	return &Report{Run: run, Stats: stats}
}

// load fetches, parses, maps and partitions the catalog.
func (r *Runner) load(ctx context.Context, report *Report) ([]models.Product, error) {
	file, err := r.deps.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	res, err := r.deps.Parser.Parse(file)
	if err != nil {
		return nil, err
	}

	run := report.Run
	run.Source = file.Name
	run.Origin = string(file.Origin)
	run.Schema = string(res.Schema)
	if r.deps.Store != nil {
		if err := r.deps.Store.UpdateSource(context.WithoutCancel(ctx), run.ID, run.Source, run.Origin, run.Schema); err != nil {
			r.deps.Logger.Warn("Failed to record run source: %v", err)
		}
	}

	products := r.deps.Mapper.Map(res)
	sellable, _ := mapper.Partition(products, report.Stats)
	r.deps.Logger.Info("%d products mapped from %s: %d sellable, %d without stock",
		len(products), file.Name, report.Stats.Sellable, report.Stats.OutOfStock)
	return sellable, nil
}

func (r *Runner) observers(runID string) []syncer.Observer {
	var out []syncer.Observer
	if r.deps.Store != nil {
		out = append(out, r.deps.Store.Recorder(runID))
	}
	if r.deps.Events != nil {
		out = append(out, r.deps.Events.Observer(runID))
	}
	if r.deps.Metrics != nil {
		out = append(out, r.deps.Metrics)
	}
	return out
}

func (r *Runner) fail(ctx context.Context, report *Report, err error) error {
	r.deps.Logger.Error("%s run %s failed: %v", report.Run.Kind, report.Run.ID, err)
	r.finish(ctx, report, models.RunStatusFailed, err.Error())
	return err
}

// finish closes the run everywhere it is tracked. It runs detached from ctx
// so an interrupted run is still recorded.
func (r *Runner) finish(ctx context.Context, report *Report, status models.RunStatus, message string) {
	ctx = context.WithoutCancel(ctx)
	stats := report.Stats
	stats.FinishedAt = r.now()

	run := report.Run
	run.Status = status
	run.Message = message
	run.Processed = stats.Processed
	run.Created = stats.Created
	run.Duplicates = stats.Duplicates
	run.Errors = stats.ErrorCount()
	run.Sellable = stats.Sellable
	run.OutOfStock = stats.OutOfStock
	run.SuccessRate = stats.SuccessRate()
	finished := stats.FinishedAt
	run.FinishedAt = &finished

	if r.deps.Store != nil {
		if err := r.deps.Store.FinishRun(ctx, run.ID, status, stats, message); err != nil {
			r.deps.Logger.Warn("Failed to close run %s: %v", run.ID, err)
		}
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.RunFinished(run)
	}
	if r.deps.Events != nil {
		if err := r.deps.Events.RunCompleted(ctx, run); err != nil {
			r.deps.Logger.Warn("Run completion for %s not published: %v", run.ID, err)
		}
	}
	r.deps.Logger.Info("%s run %s %s: %s", run.Kind, run.ID, status, stats.Summary())
}
