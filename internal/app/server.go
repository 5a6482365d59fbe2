// Package app wires configuration, storage, queues and transports into the
// running story service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-story-service/internal/api"
	"github.com/samvad-hq/samvad-story-service/internal/config"
	"github.com/samvad-hq/samvad-story-service/internal/counters"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
	"github.com/samvad-hq/samvad-story-service/internal/queue"
	"github.com/samvad-hq/samvad-story-service/internal/scraper"
	"github.com/samvad-hq/samvad-story-service/internal/storage"
	"github.com/samvad-hq/samvad-story-service/internal/stories"
	"github.com/samvad-hq/samvad-story-service/internal/tenant"
	"github.com/samvad-hq/samvad-story-service/pkg/httpclient"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

const memoryQueueSize = 1024

// Server is the story service runtime: the HTTP API plus the scrape worker.
type Server struct {
	cfg     *config.Config
	log     logger.Logger
	store   storage.Store
	redis   *redis.Client
	backend queue.Backend
	fanout  *publishers.Fanout
	api     *api.Server
	worker  *ScrapeWorker
}

// NewServer builds the runtime from cfg.
func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	tenants, err := tenant.LoadRegistry(cfg.TenantsFile)
	if err != nil {
		return nil, fmt.Errorf("load tenants registry: %w", err)
	}
	tenantIDs := make([]string, 0)
	for _, t := range tenants.All() {
		tenantIDs = append(tenantIDs, t.ID)
	}
	log.InfoObj("tenants registry loaded", "tenants_meta", map[string]any{
		"count": len(tenantIDs),
		"ids":   tenantIDs,
	})

	s := &Server{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	s.store, err = storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		JobTTL:          cfg.ScrapeDedupeTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                      cfg.StorageType,
		"path":                      cfg.BBoltPath,
		"scrape_dedupe_ttl_seconds": int(cfg.ScrapeDedupeTTL.Seconds()),
		"cleanup_interval_seconds":  int(cfg.StorageCleanupInterval.Seconds()),
	})

	var counts counters.Cache = counters.Nop{}
	if cfg.RedisEnabled {
		s.redis, err = counters.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		if err := s.redis.Ping(ctx).Err(); err != nil {
			log.WarnObj("redis ping failed; continuing", "error", err.Error())
		}
		counts = counters.NewRedisCache(s.redis)
	}

	s.backend, err = s.buildQueue(cfg)
	if err != nil {
		return nil, err
	}

	s.fanout, err = buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	client := httpclient.NewRestyClient(httpclient.Options{
		Timeout:   cfg.ScrapeTimeout,
		UserAgent: cfg.ScrapeUserAgent,
	})
	scrape := scraper.New(client, s.store, log)

	svc := stories.NewService(stories.Options{
		Repo:            s.store,
		Scraper:         scrape,
		Queue:           queue.NewDedupingQueue(s.backend, s.store, log),
		Counts:          counts,
		Events:          s.fanout,
		Log:             log,
		MergeCountsMode: cfg.MergeCountsMode,
	})

	s.api = api.New(api.Deps{Stories: svc, Tenants: tenants, Log: log})
	s.worker = NewScrapeWorker(s.backend, tenants, svc, log)

	ok = true
	return s, nil
}

func (s *Server) buildQueue(cfg *config.Config) (queue.Backend, error) {
	typ, err := queue.NormalizeType(cfg.QueueType)
	if err != nil {
		return nil, err
	}
	s.log.InfoObj("scrape queue initialized", "queue_type", typ)

	switch typ {
	case queue.TypeMemory:
		return queue.NewMemoryQueue(memoryQueueSize, s.log), nil
	case queue.TypeRedis:
		if s.redis == nil {
			return nil, fmt.Errorf("redis queue requires redis_enabled")
		}
		return queue.NewRedisQueue(s.redis, queue.RedisConfig{
			Stream:           cfg.ScrapeStream,
			Group:            cfg.ScrapeGroup,
			Consumer:         cfg.ScrapeConsumer,
			BatchSize:        cfg.ScrapeBatchSize,
			Block:            cfg.ScrapeBlock,
			RetryIdle:        cfg.ScrapeRetryIdle,
			MaxDeliveries:    cfg.ScrapeMaxDeliver,
			DeadLetterStream: cfg.ScrapeDeadLetter,
		}, s.log), nil
	default:
		return queue.Nop{}, nil
	}
}

// buildFanout loads the optional publishers file. No file means no events.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		log.InfoObj("no publishers file configured; story events disabled", "publishers_file", path)
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	clients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(clients), nil
}

// API returns the HTTP server.
func (s *Server) API() *api.Server { return s.api }

// Run serves HTTP and drains the scrape queue until ctx is cancelled, then
// shuts both down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.api == nil {
		return fmt.Errorf("server is not initialized")
	}
	defer s.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.api.Start(s.cfg.HTTPAddr)
	})
	g.Go(func() error {
		err := s.worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.InfoObj("shutting down", "timeout", s.cfg.ShutdownTimeout.String())
		return s.api.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// close releases every resource the server opened, logging failures.
func (s *Server) close() {
	closers := []struct {
		name string
		fn   func() error
	}{
		{"publishers", func() error { return s.fanout.Close() }},
		{"queue", func() error {
			if s.backend == nil {
				return nil
			}
			return s.backend.Close()
		}},
		{"redis", func() error {
			if s.redis == nil {
				return nil
			}
			return s.redis.Close()
		}},
		{"storage", func() error {
			if s.store == nil {
				return nil
			}
			return s.store.Close()
		}},
	}
	for _, c := range closers {
		if err := c.fn(); err != nil {
			s.log.ErrorObj(c.name+" close failed", "error", err.Error())
		}
	}
}
