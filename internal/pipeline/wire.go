package pipeline

import (
	"time"

	"catalogsync/internal/config"
	"catalogsync/internal/database"
	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/mapper"
	"catalogsync/internal/metrics"
	"catalogsync/internal/retry"
	"catalogsync/internal/services/shopify"
	"catalogsync/internal/source"
	"catalogsync/internal/syncer"
)

const maxBackoff = 30 * time.Second

// Components holds the long-lived dependencies built from Config. Optional
// ones are nil when their settings are absent or they failed to open.
type Components struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *database.Database
	Store    *database.RunStore
	Events   *events.Publisher
	Requests *events.Publisher
	Metrics  *metrics.Collector
	Client   *shopify.Client
	Gate     source.Gate

	closers []func() error
}

// Open connects everything Config names. Only the run ledger is required
// when requireStore is set; other backends degrade to absent with a warning.
func Open(cfg *config.Config, log *logger.Logger, requireStore bool) (*Components, error) {
	c := &Components{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Gate:    source.NoopGate{},
	}

	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel == "debug")
	if err != nil {
		if requireStore {
			return nil, err
		}
		log.Warn("Run ledger disabled: %v", err)
	} else {
		c.DB = db
		c.Store = database.NewRunStore(db.DB, log.Named("ledger"))
		c.closers = append(c.closers, db.Close)
	}

	if cfg.RedisURL != "" {
		gate, err := source.NewRedisGate(cfg.RedisURL, cfg.SourceMinInterval)
		if err != nil {
			log.Warn("Download gate disabled: %v", err)
		} else {
			c.Gate = gate
			c.closers = append(c.closers, gate.Close)
		}
	}

	if cfg.KafkaBrokers != "" {
		c.Events = events.NewPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaEventsTopic), log.Named("events"))
		c.Requests = events.NewPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaRequestsTopic), log.Named("requests"))
		c.closers = append(c.closers, c.Events.Close, c.Requests.Close)
	}

	if cfg.HasShopCredentials() {
		c.Client = shopify.NewClient(cfg.ShopDomain, cfg.AccessToken, cfg.APIVersion, log.Named("shopify"))
	}
	return c, nil
}

// RetryPolicy turns MAX_RETRIES into a total attempt count and reports
// every retry to the metrics collector.
func (c *Components) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Config.MaxRetries,
		BaseDelay:   c.Config.RetryBaseDelay,
		MaxDelay:    maxBackoff,
		OnRetry: func(op string, attempt int, err error) {
			c.Metrics.OnRetry(op, attempt, err)
			c.Logger.Debug("Retrying %s (attempt %d): %v", op, attempt, err)
		},
	}
}

// Engine returns nil when no shop credentials are configured.
func (c *Components) Engine() *syncer.Engine {
	return c.engine(c.Config.ProbeWrite)
}

// ReadOnlyEngine is for permission checks that must never create a probe
// product.
func (c *Components) ReadOnlyEngine() *syncer.Engine {
	return c.engine(false)
}

func (c *Components) engine(probeWrite bool) *syncer.Engine {
	if c.Client == nil {
		return nil
	}
	cfg := c.Config
	return syncer.New(c.Client, syncer.Options{
		BatchSize:          cfg.MaxBatchSize,
		RequestDelay:       cfg.RequestDelay,
		BatchPause:         cfg.BatchPause,
		Retry:              c.RetryPolicy(),
		ImageLimit:         cfg.ImageLimit,
		DuplicateKey:       syncer.DuplicateKey(cfg.DuplicateKey),
		InventoryMode:      syncer.InventoryMode(cfg.InventoryMode),
		LocationHint:       cfg.LocationHint,
		ErrorThreshold:     cfg.ErrorThreshold,
		CooldownBase:       cfg.CooldownBase,
		CooldownMax:        cfg.CooldownMax,
		ProbeWrite:         probeWrite,
		TaxonomyGID:        shopify.TaxonomyGID(cfg.TaxonomyCategoryID),
		MetafieldNamespace: cfg.MetafieldNamespace,
	}, c.Logger.Named("syncer"))
}

func (c *Components) Fetcher() *source.Fetcher {
	return source.NewFetcher(source.FetchOptions{
		URL:        c.Config.SourceURL,
		LocalFiles: c.Config.LocalSourceFiles,
		Timeout:    c.Config.DownloadTimeout,
		Retry:      c.RetryPolicy(),
		Persist:    true,
	}, c.Gate, c.Logger.Named("source"))
}

// Runner builds a runner around a fresh engine. The engine re-probes
// permissions at the start of every run, so a long-lived runner picks up
// scope changes.
func (c *Components) Runner() *Runner {
	deps := Deps{
		Fetcher:   c.Fetcher(),
		Parser:    source.NewParser(c.Logger.Named("parser")),
		Mapper:    mapper.New(mapper.Options{ImageLimit: c.Config.ImageLimit}, c.Logger.Named("mapper")),
		Store:     c.Store,
		Events:    c.Events,
		Metrics:   c.Metrics,
		Logger:    c.Logger.Named("pipeline"),
		SplitDir:  c.Config.SplitOutputDir,
		ChunkSize: c.Config.SplitChunkSize,
		Engine:    c.Engine(),
	}
	return NewRunner(deps)
}

// Close releases every opened backend, newest first.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn("Close failed: %v", err)
		}
	}
}
