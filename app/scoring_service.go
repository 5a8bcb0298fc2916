package app

import (
	"context"
	"time"

	"riskscore/domain/credit"
	"riskscore/internal"
	"riskscore/internal/errors"
	"riskscore/internal/metrics"
	"riskscore/internal/telemetry"
	"riskscore/ports"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// Memo table names, used as metric labels and Redis key prefixes
const (
	PredictTable = "predict"
	ExplainTable = "explain"
)

// ScoringService memoizes model scoring and attribution per distinct set of
// client attributes. Failures are returned to the caller and never stored.
type ScoringService struct {
	model        ports.ScoringModel
	explainer    ports.Explainer
	predictions  ports.MemoStore[credit.Prediction]
	attributions ports.MemoStore[credit.Attribution]
	flights      singleflight.Group
	log          *internal.Logger
}

// NewScoringService wires the injected model and explainer handles to two memo tables
func NewScoringService(
	model ports.ScoringModel,
	explainer ports.Explainer,
	predictions ports.MemoStore[credit.Prediction],
	attributions ports.MemoStore[credit.Attribution],
) *ScoringService {
	return &ScoringService{
		model:        model,
		explainer:    explainer,
		predictions:  predictions,
		attributions: attributions,
		log:          internal.Component("Scoring"),
	}
}

// CacheStats reports resident entries per memo table
type CacheStats struct {
	Predictions  int `json:"predictions"`
	Attributions int `json:"attributions"`
}

// Stats returns the current memo table sizes. A negative size means the
// backend could not report one.
func (s *ScoringService) Stats() CacheStats {
	stats := CacheStats{
		Predictions:  s.predictions.Len(),
		Attributions: s.attributions.Len(),
	}
	metrics.MemoEntries.WithLabelValues(PredictTable).Set(float64(stats.Predictions))
	metrics.MemoEntries.WithLabelValues(ExplainTable).Set(float64(stats.Attributions))
	return stats
}

// Predict returns the feature record and score for attrs. A hit returns the
// stored value without touching the model.
func (s *ScoringService) Predict(ctx context.Context, attrs credit.ClientAttributes) (pred credit.Prediction, err error) {
	key := attrs.CacheKey()
	ctx, span := telemetry.StartSpan(ctx, "scoring.predict", attribute.String("cache.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	if cached, ok := lookup(ctx, s.log, s.predictions, PredictTable, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, _ := s.flights.Do(PredictTable+":"+key, func() (interface{}, error) {
		if err := attrs.Validate(); err != nil {
			return nil, err
		}

		start := time.Now()
		record := credit.Build(attrs)
		result, err := s.model.Score(record)
		if err != nil {
			metrics.ComputeErrors.WithLabelValues(PredictTable).Inc()
			return nil, errors.Computation("scoring", err)
		}
		metrics.ComputeDuration.WithLabelValues(PredictTable).Observe(time.Since(start).Seconds())

		p := credit.Prediction{Record: record, Result: result}
		store(ctx, s.log, s.predictions, PredictTable, key, p)
		return p, nil
	})
	if err != nil {
		return credit.Prediction{}, err
	}
	return v.(credit.Prediction), nil
}

// Explain returns per-feature attributions for attrs, in record order. The
// returned value is a private copy.
func (s *ScoringService) Explain(ctx context.Context, attrs credit.ClientAttributes) (attr credit.Attribution, err error) {
	key := attrs.CacheKey()
	ctx, span := telemetry.StartSpan(ctx, "scoring.explain", attribute.String("cache.key", key))
	defer func() { telemetry.EndSpan(span, err) }()

	if cached, ok := lookup(ctx, s.log, s.attributions, ExplainTable, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.Clone(), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, _ := s.flights.Do(ExplainTable+":"+key, func() (interface{}, error) {
		pred, err := s.Predict(ctx, attrs)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		a, err := s.explainer.Explain(pred.Record)
		if err != nil {
			metrics.ComputeErrors.WithLabelValues(ExplainTable).Inc()
			return nil, errors.Computation("attribution", err)
		}
		metrics.ComputeDuration.WithLabelValues(ExplainTable).Observe(time.Since(start).Seconds())

		a = a.Clone()
		store(ctx, s.log, s.attributions, ExplainTable, key, a)
		return a, nil
	})
	if err != nil {
		return credit.Attribution{}, err
	}
	return v.(credit.Attribution).Clone(), nil
}

// lookup treats a store failure as a miss so a flaky shared backend only
// costs a recomputation.
func lookup[V any](ctx context.Context, log *internal.Logger, s ports.MemoStore[V], table, key string) (V, bool) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		log.Warn("%s lookup failed, recomputing: %v", table, err)
		ok = false
	}
	outcome := metrics.OutcomeMiss
	if ok {
		outcome = metrics.OutcomeHit
	}
	metrics.MemoLookups.WithLabelValues(table, outcome).Inc()
	log.Trace("%s %s for %s", table, outcome, key)
	return v, ok
}

func store[V any](ctx context.Context, log *internal.Logger, s ports.MemoStore[V], table, key string, v V) {
	if err := s.Set(ctx, key, v); err != nil {
		log.Warn("%s store failed for %s: %v", table, key, err)
		return
	}
	log.Debug("%s stored %s", table, key)
}
