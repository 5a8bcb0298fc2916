package container

import (
	"context"
	"fmt"
	"log"

	"riskscore/adapters/cache"
	"riskscore/adapters/excel"
	"riskscore/adapters/llm"
	"riskscore/adapters/pdf"
	"riskscore/adapters/xgboost"
	"riskscore/app"
	"riskscore/domain/credit"
	"riskscore/internal/config"
	"riskscore/internal/errors"
	"riskscore/ports"

	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Model handles, loaded exactly once
	Model     *xgboost.Ensemble
	Explainer *xgboost.TreeExplainer

	// Infrastructure
	Redis *redis.Client

	// Services
	Scoring  *app.ScoringService
	Analysis *app.AnalysisService
	Advisory *app.AdvisoryService
	Exports  *app.ExportService
	Batch    *app.BatchService
}

// New loads the model artifact, builds the explainer and wires every
// service. Any error here is a startup configuration error.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
	}

	if err := c.initModel(); err != nil {
		return nil, err
	}
	if err := c.initServices(); err != nil {
		c.Shutdown(context.Background())
		return nil, err
	}

	log.Printf("[Container] initialized: %d trees, cache=%s, advisory=%t",
		c.Model.NumTrees(), cfg.Cache.Backend, c.Advisory.Enabled())
	return c, nil
}

// initModel loads the model and precomputes the explainer tables
func (c *Container) initModel() error {
	model, err := xgboost.Load(c.Config.Model.Path, xgboost.Options{
		FeatureNames: credit.FeatureNames(),
		Threshold:    c.Config.Model.Threshold,
	})
	if err != nil {
		return errors.Wrap(err, "failed to load scoring model")
	}

	explainer, err := xgboost.NewTreeExplainer(model)
	if err != nil {
		return errors.Wrap(err, "failed to build attribution engine")
	}

	c.Model = model
	c.Explainer = explainer
	log.Printf("[Container] model loaded from %s (expected value %.4f)", c.Config.Model.Path, explainer.ExpectedValue())
	return nil
}

// initServices selects the memo backend and wires the services
func (c *Container) initServices() error {
	predictions, attributions, err := c.memoStores()
	if err != nil {
		return err
	}

	c.Scoring = app.NewScoringService(c.Model, c.Explainer, predictions, attributions)
	c.Analysis = app.NewAnalysisService(c.Scoring)
	c.Exports = app.NewExportService(pdf.NewDocumentWriter(), excel.NewWorkbookWriter())
	c.Batch = app.NewBatchService(c.Scoring)
	c.Advisory = app.NewAdvisoryService(c.textGenerator(), app.AdvisoryConfig{
		MaxTokens:   c.Config.AI.MaxTokens,
		Temperature: c.Config.AI.Temperature,
		Timeout:     c.Config.AI.Timeout,
	})
	return nil
}

func (c *Container) memoStores() (ports.MemoStore[credit.Prediction], ports.MemoStore[credit.Attribution], error) {
	cc := c.Config.Cache
	switch cc.Backend {
	case config.CacheLRU:
		predictions, err := cache.NewLRUStore[credit.Prediction](cc.Size)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid CACHE_SIZE")
		}
		attributions, err := cache.NewLRUStore[credit.Attribution](cc.Size)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid CACHE_SIZE")
		}
		return predictions, attributions, nil

	case config.CacheRedis:
		client, err := cache.NewRedisClient(cc)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "redis cache unavailable")
		}
		c.Redis = client
		log.Printf("[Container] memo tables shared through Redis at %s", cc.RedisAddr)
		return cache.NewRedisStore[credit.Prediction](client, "riskscore:"+app.PredictTable, cc.RedisTTL),
			cache.NewRedisStore[credit.Attribution](client, "riskscore:"+app.ExplainTable, cc.RedisTTL),
			nil

	default:
		return cache.NewMemoryStore[credit.Prediction](), cache.NewMemoryStore[credit.Attribution](), nil
	}
}

// textGenerator returns nil when no credential is configured, which keeps
// the advisory feature disabled without failing startup.
func (c *Container) textGenerator() ports.TextGenerator {
	ai := c.Config.AI
	if !ai.AdvisoryEnabled() {
		log.Printf("[Container] no language model key configured, advisory disabled")
		return nil
	}

	gen, err := llm.NewClient(llm.Config{
		Provider:      ai.Provider,
		Model:         ai.Model,
		APIKey:        ai.APIKey,
		BaseURL:       ai.BaseURL,
		Temperature:   ai.Temperature,
		MaxTokens:     ai.MaxTokens,
		Timeout:       ai.Timeout,
		MaxRetries:    ai.MaxRetries,
		RatePerMinute: ai.RatePerMinute,
	})
	if err != nil {
		log.Printf("[Container] advisory disabled: %v", err)
		return nil
	}
	return gen
}

// Shutdown releases external connections
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
		c.Redis = nil
	}
	log.Printf("[Container] shut down")
	return nil
}
