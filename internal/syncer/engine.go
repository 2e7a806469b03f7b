// Package syncer pushes sellable products to the store one record at a time:
// duplicate check, create, then best-effort inventory, category and
// metadata steps.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/retry"
	"catalogsync/internal/services/shopify"
)

type DuplicateKey string

const (
	DuplicateByHandle          DuplicateKey = "handle"
	DuplicateByTitle           DuplicateKey = "title"
	DuplicateByHandleThenTitle DuplicateKey = "handle_then_title"
)

type InventoryMode string

const (
	InventorySet    InventoryMode = "set"
	InventoryAdjust InventoryMode = "adjust"
)

type Options struct {
	BatchSize    int
	RequestDelay time.Duration
	BatchPause   time.Duration
	Retry        retry.Policy
	ImageLimit   int

	DuplicateKey  DuplicateKey
	InventoryMode InventoryMode
	LocationHint  string

	// ErrorThreshold consecutive failures trigger a cooldown of
	// CooldownBase per failure, capped at CooldownMax.
	ErrorThreshold int
	CooldownBase   time.Duration
	CooldownMax    time.Duration

	// ProbeWrite lets Probe create and delete a draft product.
	ProbeWrite bool
	// TaxonomyGID is the category assigned through GraphQL. Empty means the
	// coarse product type is the only classification.
	TaxonomyGID        string
	MetafieldNamespace string

	// Sleep paces the run. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Engine struct {
	platform    Platform
	opts        Options
	transformer *shopify.Transformer
	logger      *logger.Logger
	observers   []Observer

	perms       *Permissions
	consecutive int
}

func New(platform Platform, opts Options, logger *logger.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.DuplicateKey == "" {
		opts.DuplicateKey = DuplicateByHandle
	}
	if opts.InventoryMode == "" {
		opts.InventoryMode = InventorySet
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Retry.Sleep == nil {
		opts.Retry.Sleep = opts.Sleep
	}
	return &Engine{
		platform:    platform,
		opts:        opts,
		transformer: shopify.NewTransformer(opts.ImageLimit),
		logger:      logger,
	}
}

// Observe registers an observer for record outcomes.
func (e *Engine) Observe(o Observer) {
	e.observers = append(e.observers, o)
}

// Run processes products in order and accumulates into stats. It returns
// only when every record has an outcome or ctx is cancelled; per-record
// failures never abort it. Extra observers only see this run. Permissions
// are probed afresh at the start of every run.
func (e *Engine) Run(ctx context.Context, products []models.Product, stats *models.Statistics, extra ...Observer) error {
	e.perms = nil
	e.permissions(ctx)
	e.consecutive = 0
	observers := append(append([]Observer{}, e.observers...), extra...)

	total := len(products)
	for start := 0; start < total; start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > total {
			end = total
		}
		e.logger.Info("Batch %d-%d of %d", start+1, end, total)

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := &products[i]
			o := e.Process(ctx, p)
			e.account(stats, o)
			for _, obs := range observers {
				obs.RecordProcessed(ctx, p, o)
			}
			if o.Kind == ErrorKindCancelled {
				return ctx.Err()
			}

			if err := e.govern(ctx, o); err != nil {
				return err
			}
			if i < end-1 {
				if err := e.opts.Sleep(ctx, e.opts.RequestDelay); err != nil {
					return err
				}
			}
		}

		if end < total {
			e.logger.Debug("Pausing %s between batches", e.opts.BatchPause)
			if err := e.opts.Sleep(ctx, e.opts.BatchPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// Process runs the workflow for a single record.
func (e *Engine) Process(ctx context.Context, p *models.Product) Outcome {
	existing, err := e.findExisting(ctx, p)
	if err != nil {
		kind := Classify(err)
		if kind != ErrorKindCancelled {
			kind = ErrorKindLookup
		}
		e.logger.Warn("Duplicate check failed for %s: %v", p.Handle, err)
		return Outcome{State: StateCreateFailed, Kind: kind, Err: err}
	}
	if existing != nil {
		e.logger.Info("Skipping %s: already exists as product %d", p.Handle, existing.ID)
		return Outcome{State: StateSkipDuplicate, Ref: shopify.ToRef(existing)}
	}

	payload, err := e.transformer.TransformToShopify(p)
	if err != nil {
		return Outcome{State: StateCreateFailed, Kind: ErrorKindValidation, Err: err}
	}

	created, stripped, err := e.create(ctx, payload)
	if err != nil {
		e.logger.Error("Failed to create %s: %v", p.Handle, err)
		return Outcome{State: StateCreateFailed, Kind: Classify(err), Err: err}
	}

	o := Outcome{State: StateCreated, Ref: shopify.ToRef(created), ImagesStripped: stripped}
	e.logger.Info("Created %s as product %d", p.Handle, o.Ref.ID)

	inventory := e.setInventory(ctx, p, &o.Ref)
	category := e.assignCategory(ctx, p, o.Ref)
	metadata := e.attachMetadata(ctx, p, o.Ref)
	o.Steps = []StepResult{inventory, category, metadata}
	return o
}

func (e *Engine) findExisting(ctx context.Context, p *models.Product) (*shopify.Product, error) {
	byHandle := func(ctx context.Context) (*shopify.Product, error) {
		return e.platform.FindProductByHandle(ctx, p.Handle)
	}
	byTitle := func(ctx context.Context) (*shopify.Product, error) {
		return e.platform.FindProductByTitle(ctx, p.Title)
	}

	switch e.opts.DuplicateKey {
	case DuplicateByTitle:
		return retry.DoValue(ctx, e.opts.Retry, "find by title", byTitle)
	case DuplicateByHandleThenTitle:
		found, err := retry.DoValue(ctx, e.opts.Retry, "find by handle", byHandle)
		if err != nil || found != nil {
			return found, err
		}
		return retry.DoValue(ctx, e.opts.Retry, "find by title", byTitle)
	default:
		return retry.DoValue(ctx, e.opts.Retry, "find by handle", byHandle)
	}
}

// create submits the payload and, when the store rejects the images, tries
// once more without them.
func (e *Engine) create(ctx context.Context, payload *shopify.Product) (*shopify.Product, bool, error) {
	submit := func(pl *shopify.Product) (*shopify.Product, error) {
		return retry.DoValue(ctx, e.opts.Retry, "create product", func(ctx context.Context) (*shopify.Product, error) {
			return e.platform.CreateProduct(ctx, pl)
		})
	}

	created, err := submit(payload)
	if err == nil {
		return created, false, nil
	}
	if len(payload.Images) == 0 || !shopify.IsImageError(err) {
		return nil, false, err
	}

	e.logger.Warn("Images rejected for %s, retrying without them: %v", payload.Handle, err)
	created, err = submit(shopify.StripImages(payload))
	if err != nil {
		return nil, true, err
	}
	return created, true, nil
}

func (e *Engine) account(stats *models.Statistics, o Outcome) {
	stats.Processed++
	switch o.State {
	case StateCreated:
		stats.Created++
	case StateSkipDuplicate:
		stats.Duplicates++
	default:
		stats.AddError(string(o.Kind))
	}

	for _, s := range o.Steps {
		switch s.Name {
		case StepInventory:
			switch s.Status {
			case StepOK:
				stats.InventoryUpdated++
			case StepFailed:
				stats.InventoryErrors++
			case StepSkipped:
				stats.InventorySkipped++
			}
		case StepCategory:
			switch s.Status {
			case StepOK:
				stats.CategoryAssigned++
			case StepFallback:
				stats.CategoryFallback++
			case StepFailed:
				stats.CategoryErrors++
			}
		case StepMetadata:
			switch s.Status {
			case StepOK:
				stats.MetadataAttached++
			case StepFailed:
				stats.MetadataErrors++
			}
		}
	}
}

// govern backs off after a run of consecutive failures. The counter only
// resets on a successful record.
func (e *Engine) govern(ctx context.Context, o Outcome) error {
	if !o.Failed() {
		e.consecutive = 0
		return nil
	}
	e.consecutive++
	if e.opts.ErrorThreshold <= 0 || e.consecutive < e.opts.ErrorThreshold {
		return nil
	}
	cooldown := e.cooldown()
	e.logger.Warn("%d consecutive failures, cooling down for %s", e.consecutive, cooldown)
	return e.opts.Sleep(ctx, cooldown)
}

func (e *Engine) cooldown() time.Duration {
	d := e.opts.CooldownBase * time.Duration(e.consecutive)
	if e.opts.CooldownMax > 0 && d > e.opts.CooldownMax {
		return e.opts.CooldownMax
	}
	return d
}

func stepError(name string, err error) StepResult {
	return StepResult{Name: name, Status: StepFailed, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errNoLocation = errors.New("no active inventory location")

func wrapStep(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
