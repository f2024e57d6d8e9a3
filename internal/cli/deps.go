package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoPolymarket/attestgate/internal/config"
	"github.com/GoPolymarket/attestgate/internal/llm"
	"github.com/GoPolymarket/attestgate/internal/market"
	"github.com/GoPolymarket/attestgate/internal/middleware"
	"github.com/GoPolymarket/attestgate/internal/pkg/logger"
	"github.com/GoPolymarket/attestgate/internal/repository"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// deps opens shared resources on first use and releases them in reverse
// order on close. Optional backends fall back to memory when they are not
// configured or cannot be reached.
type deps struct {
	cfg     *config.Config
	closers []func()

	redisOpened bool
	redis       *redis.Client

	dbOpened bool
	db       *sqlx.DB
	dbErr    error

	rest   *market.RESTClient
	prices market.PriceFeed
}

func newDeps(cfg *config.Config) *deps {
	return &deps{cfg: cfg}
}

func (d *deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *deps) redisClient() *redis.Client {
	if d.redisOpened {
		return d.redis
	}
	d.redisOpened = true
	if d.cfg.Redis.Addr == "" {
		return nil
	}
	rdb, err := repository.OpenRedis(context.Background(), d.cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis, falling back to memory", "error", err)
		return nil
	}
	logger.Info("Connected to Redis", "addr", d.cfg.Redis.Addr)
	d.redis = rdb
	d.onClose(func() { _ = rdb.Close() })
	return d.redis
}

// database returns nil when no DSN is configured. A configured database
// that cannot be reached is an error.
func (d *deps) database() (*sqlx.DB, error) {
	if !d.dbOpened {
		d.dbOpened = true
		d.db, d.dbErr = d.openDatabase()
	}
	return d.db, d.dbErr
}

func (d *deps) openDatabase() (*sqlx.DB, error) {
	if d.cfg.Database.DSN == "" {
		return nil, nil
	}
	db, err := repository.NewDB(d.cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to PostgreSQL")
	if d.cfg.Database.AutoMigrate {
		if err := repository.RunMigrations(d.cfg.Database.DSN); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	d.onClose(func() { _ = db.Close() })
	return db, nil
}

func (d *deps) tradeRepo() (service.TradeRepo, error) {
	db, err := d.database()
	if err != nil {
		return nil, err
	}
	if db == nil {
		logger.Warn("No database configured, trades are kept in memory")
		return repository.NewMemoryTradeRepo(), nil
	}
	return repository.NewPostgresTradeRepo(db), nil
}

func (d *deps) restClient() *market.RESTClient {
	if d.rest == nil {
		d.rest = market.NewRESTClient(d.cfg.PriceFeed.BaseURL, d.cfg.PriceFeed.Timeout)
	}
	return d.rest
}

func (d *deps) priceFeed() market.PriceFeed {
	if d.prices != nil {
		return d.prices
	}
	pf := d.cfg.PriceFeed
	rest := d.restClient()
	d.prices = rest
	if pf.Stream {
		stream := market.NewStreamService(pf.StreamURL)
		pairs := make([]string, 0, len(pf.StreamSymbols))
		for _, sym := range pf.StreamSymbols {
			pairs = append(pairs, strings.ToUpper(strings.TrimSpace(sym))+strings.ToUpper(pf.QuoteAsset))
		}
		stream.Subscribe(pairs)
		stream.Start()
		d.onClose(stream.Stop)
		d.prices = market.NewCachedFeed(stream, rest, pf.StaleAfter)
	}
	return d.prices
}

// retriever queries the remote trade store when one is configured and the
// local repository otherwise.
func (d *deps) retriever() (service.TradeRetriever, error) {
	rc := d.cfg.Retriever
	if rc.StoreURL != "" {
		return service.NewRemoteRetriever(rc.StoreURL, rc.Timeout), nil
	}
	repo, err := d.tradeRepo()
	if err != nil {
		return nil, err
	}
	return service.NewLocalRetriever(repo, d.priceFeed(), d.cfg.PriceFeed.QuoteAsset, rc.WindowRadius, rc.Limit), nil
}

// advisor returns nil when no model is configured. Callers degrade to
// their documented fallbacks.
func (d *deps) advisor() llm.Client {
	client, err := llm.New(d.cfg.LLM)
	if err != nil {
		logger.Warn("LLM advisor disabled", "error", err)
		return nil
	}
	return client
}

func (d *deps) thresholdStore() service.ThresholdStore {
	if rdb := d.redisClient(); rdb != nil {
		return repository.NewRedisThresholdStore(rdb, d.cfg.Redis.ThresholdsKey)
	}
	return service.NewMemoryThresholdStore()
}

func (d *deps) idempotencyStore() middleware.IdempotencyStore {
	if rdb := d.redisClient(); rdb != nil {
		return repository.NewRedisIdempotencyStore(rdb, d.cfg.Redis.IdempotencyTTL)
	}
	return middleware.NewInMemIdempotencyStore(d.cfg.Redis.IdempotencyTTL)
}

// auditService persists to Postgres when available, then Redis, then the
// local file only.
func (d *deps) auditService(ctx context.Context, name string) (*service.AuditService, error) {
	var repo service.AuditRepo
	db, err := d.database()
	if err != nil {
		return nil, err
	}
	switch {
	case db != nil:
		pg, err := repository.NewPostgresAuditRepo(ctx, db)
		if err != nil {
			return nil, err
		}
		repo = pg
	case d.redisClient() != nil:
		repo = repository.NewRedisAuditRepo(d.redisClient(), d.cfg.Redis.AuditListKey, d.cfg.Redis.AuditListMax)
	}

	svc, err := service.NewAuditService(name, d.cfg.Audit.LogDir, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit service: %w", err)
	}
	d.onClose(svc.Close)
	return svc, nil
}
