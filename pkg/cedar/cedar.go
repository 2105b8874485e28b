package cedar

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/cedar/internal/logger"
	"github.com/cognicore/cedar/pkg/cedar/graph"
	"github.com/cognicore/cedar/pkg/cedar/inference"
	"github.com/cognicore/cedar/pkg/cedar/inference/fuzzy"
	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/metrics"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
)

// Cedar is the reasoning facade used by transports (CLI, HTTP handlers).
// It decodes loosely typed requests, runs the reasoner, and tags every answer
// with a ULID.
type Cedar struct {
	kb       *kb.KnowledgeBase
	sim      *similarity.Relation
	reasoner inference.Reasoner
	log      *zap.Logger
	metrics  metrics.Recorder

	minDegree      float64
	graphThreshold float64

	mu      sync.Mutex // guards entropy
	entropy *ulid.MonotonicEntropy
}

// Options configures a Cedar instance
type Options struct {
	KB         *kb.KnowledgeBase
	Similarity *similarity.Relation
	Reasoner   inference.Reasoner // defaults to fuzzy.New(KB, Similarity)
	Logger     *zap.Logger        // defaults to a no-op logger
	Metrics    metrics.Recorder   // defaults to metrics.Noop()

	MinDegree      float64 // used when a request names no threshold
	GraphThreshold float64 // used when Graph is called without a threshold
}

// New creates a Cedar instance with the given dependencies
func New(opts Options) (*Cedar, error) {
	if opts.KB == nil || opts.Similarity == nil {
		return nil, errors.Wrap(internalerr.ErrInvalidConfig, "knowledge base and similarity relation are required")
	}
	if !internalerr.ValidDegree(opts.MinDegree) {
		return nil, errors.Wrapf(internalerr.ErrInvalidDegree, "default min degree %v", opts.MinDegree)
	}
	if !internalerr.ValidDegree(opts.GraphThreshold) {
		return nil, errors.Wrapf(internalerr.ErrInvalidDegree, "default graph threshold %v", opts.GraphThreshold)
	}

	c := &Cedar{
		kb:             opts.KB,
		sim:            opts.Similarity,
		reasoner:       opts.Reasoner,
		log:            logger.Component(opts.Logger, "cedar"),
		metrics:        opts.Metrics,
		minDegree:      opts.MinDegree,
		graphThreshold: opts.GraphThreshold,
		entropy:        ulid.Monotonic(rand.Reader, 0),
	}
	if c.reasoner == nil {
		c.reasoner = fuzzy.New(opts.KB, opts.Similarity)
	}
	if c.metrics == nil {
		c.metrics = metrics.Noop()
	}
	return c, nil
}

// AskRequest is a decoded query request. Feature values may be strings or
// numbers (any Go numeric type or json.Number).
type AskRequest struct {
	Sort      string         `json:"sort"`
	Features  map[string]any `json:"features,omitempty"`
	MinDegree *float64       `json:"min_degree,omitempty"`
}

// Answer is the ranked result of one request.
type Answer struct {
	ID        string            `json:"id"`
	Sort      string            `json:"sort"`
	MinDegree float64           `json:"min_degree"`
	Matches   []inference.Match `json:"matches"`
}

// Ask answers req. A nil MinDegree uses the configured default.
func (c *Cedar) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	done := metrics.TimeQuery(c.metrics)

	if err := ctx.Err(); err != nil {
		done(metrics.OutcomeError, 0)
		return Answer{}, err
	}

	q := inference.Query{Sort: req.Sort, MinDegree: c.minDegree}
	if req.MinDegree != nil {
		q.MinDegree = *req.MinDegree
	}

	if len(req.Features) > 0 {
		q.Constraints = make(map[string]kb.Value, len(req.Features))
		for key, raw := range req.Features {
			v, err := ConstraintValue(raw)
			if err != nil {
				done(metrics.OutcomeInvalidInput, 0)
				return Answer{}, errors.Wrapf(err, "feature %q", key)
			}
			q.Constraints[key] = v
		}
	}

	id := c.newID()
	start := time.Now()
	matches, err := c.reasoner.Query(q)
	if err != nil {
		done(outcome(err), 0)
		c.log.Debug("query rejected",
			zap.String(logger.FieldQueryID, id),
			zap.String(logger.FieldSort, q.Sort),
			zap.Error(err),
		)
		return Answer{}, err
	}
	done(metrics.OutcomeOK, len(matches))

	c.log.Debug("query answered",
		zap.String(logger.FieldQueryID, id),
		zap.String(logger.FieldSort, q.Sort),
		zap.Float64(logger.FieldMinDegree, q.MinDegree),
		zap.Int(logger.FieldCount, len(matches)),
		zap.Float64(logger.FieldDurationMS, float64(time.Since(start).Microseconds())/1000),
	)

	return Answer{
		ID:        id,
		Sort:      q.Sort,
		MinDegree: q.MinDegree,
		Matches:   matches,
	}, nil
}

// Explain describes how one instance scores against sort.
func (c *Cedar) Explain(instanceID, sort string) (inference.Explanation, error) {
	return c.reasoner.Explain(instanceID, sort)
}

// Graph returns the sort similarity graph. A nil threshold uses the
// configured default.
func (c *Cedar) Graph(threshold *float64) (graph.Data, error) {
	th := c.graphThreshold
	if threshold != nil {
		th = *threshold
	}
	return graph.Build(c.kb, c.sim, th)
}

// ConstraintValue converts a decoded request value to a kb.Value.
func ConstraintValue(raw any) (kb.Value, error) {
	switch v := raw.(type) {
	case string:
		return kb.String(v), nil
	case float64:
		return number(v)
	case float32:
		return number(float64(v))
	case int:
		return kb.Number(float64(v)), nil
	case int32:
		return kb.Number(float64(v)), nil
	case int64:
		return kb.Number(float64(v)), nil
	case uint:
		return kb.Number(float64(v)), nil
	case uint32:
		return kb.Number(float64(v)), nil
	case uint64:
		return kb.Number(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return kb.Value{}, errors.Wrapf(internalerr.ErrInvalidInput, "number %q", v.String())
		}
		return number(f)
	case kb.Value:
		if v.Kind() == kb.KindInvalid {
			return kb.Value{}, errors.Wrap(internalerr.ErrInvalidInput, "empty value")
		}
		return v, nil
	default:
		return kb.Value{}, errors.Wrapf(internalerr.ErrInvalidInput, "unsupported value type %T", raw)
	}
}

func number(f float64) (kb.Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return kb.Value{}, errors.Wrapf(internalerr.ErrInvalidInput, "number %v", f)
	}
	return kb.Number(f), nil
}

func (c *Cedar) newID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, internalerr.ErrUnknownSort):
		return metrics.OutcomeUnknownSort
	case errors.Is(err, internalerr.ErrInvalidDegree):
		return metrics.OutcomeInvalidDegree
	case errors.Is(err, internalerr.ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	default:
		return metrics.OutcomeError
	}
}
