// Package pipeline orchestrates single and batch enrichment: validation,
// condition gating, cache lookup, provider fetch, payload mapping, policy
// merge and cache write-back.
//
// Failures past validation never surface as errors. A provider outage, a
// mapping bug or a merge conflict produces a failure-shaped response so a
// batch sibling or an API caller always gets a positioned result.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/common/logging"
	"enrichment-service/internal/common/utils"
	"enrichment-service/internal/enrichment"
	"enrichment-service/internal/enrichment/cachekey"
	"enrichment-service/internal/enrichment/condition"
	"enrichment-service/internal/enrichment/merge"
	"enrichment-service/internal/metrics"
	"enrichment-service/internal/provider"
	"enrichment-service/internal/resultcache"
	"enrichment-service/internal/storage"
)

const (
	// DefaultBatchMaxSize caps how many items one batch may carry.
	DefaultBatchMaxSize = 100
	// DefaultBatchConcurrency bounds concurrent provider work per batch.
	DefaultBatchConcurrency = 10
)

// Integration customizes how one enrichment type maps and merges provider
// data. Types without a registered integration use the identity mapper and
// an open field set.
type Integration struct {
	// Mapper transforms the raw provider payload into the target document.
	Mapper provider.Mapper

	// TargetShape optionally restricts merging to a struct's declared
	// fields. Nil means the field set is the union of source and mapped keys.
	TargetShape interface{}
}

// Options configures a pipeline Service.
type Options struct {
	Provider provider.Client
	Cache    *resultcache.Cache

	// Metrics defaults to a no-op sink.
	Metrics metrics.Sink

	// History, when set, receives one record per completed enrichment.
	History storage.Recorder

	// GenerateID supplies request IDs when callers omit them.
	GenerateID func() string

	BatchMaxSize     int
	BatchConcurrency int
}

// Service runs enrichment requests end to end.
type Service struct {
	provider   provider.Client
	cache      *resultcache.Cache
	keys       *cachekey.Builder
	merger     *merge.Engine
	conditions *condition.Evaluator
	metrics    metrics.Sink
	history    storage.Recorder
	generateID func() string
	logger     logging.Logger

	batchMaxSize     int
	batchConcurrency int

	mu           sync.RWMutex
	integrations map[string]Integration
}

// NewService creates a pipeline service.
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.ConfigError("pipeline requires a provider client")
	}

	if opts.Cache == nil {
		opts.Cache = resultcache.New(nil, 0, false)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.GenerateID == nil {
		opts.GenerateID = utils.GenerateRequestID
	}
	if opts.BatchMaxSize <= 0 {
		opts.BatchMaxSize = DefaultBatchMaxSize
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = DefaultBatchConcurrency
	}

	return &Service{
		provider:         opts.Provider,
		cache:            opts.Cache,
		keys:             cachekey.NewBuilder(),
		merger:           merge.NewEngine(),
		conditions:       condition.NewEvaluator(),
		metrics:          opts.Metrics,
		history:          opts.History,
		generateID:       opts.GenerateID,
		logger:           logging.GetGlobalLogger().WithFields(logging.String("component", "pipeline")),
		batchMaxSize:     opts.BatchMaxSize,
		batchConcurrency: opts.BatchConcurrency,
		integrations:     make(map[string]Integration),
	}, nil
}

// RegisterIntegration binds a mapper and target shape to an enrichment type.
func (s *Service) RegisterIntegration(enrichmentType string, integration Integration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrations[enrichmentType] = integration
}

func (s *Service) integration(enrichmentType string) Integration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if integration, ok := s.integrations[enrichmentType]; ok {
		if integration.Mapper == nil {
			integration.Mapper = provider.IdentityMapper
		}
		return integration
	}
	return Integration{Mapper: provider.IdentityMapper}
}

// EnrichOne runs a single enrichment request. Invalid requests return a
// typed validation error before any I/O; everything past validation comes
// back as a response, failure-shaped when the enrichment could not complete.
func (s *Service) EnrichOne(ctx context.Context, req enrichment.Request) (*enrichment.Response, error) {
	req = req.WithDefaults(s.generateID)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.enrich(ctx, req), nil
}

// enrich runs a validated request through the pipeline stages.
func (s *Service) enrich(ctx context.Context, req enrichment.Request) *enrichment.Response {
	start := time.Now()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	logger := s.logger.WithFields(
		logging.String("request_id", req.RequestID),
		logging.String("enrichment_type", req.EnrichmentType),
		logging.String("merge_policy", string(req.Policy)))

	if req.Condition != "" {
		proceed, err := s.conditions.Evaluate(req.Condition, req.Source)
		if err != nil {
			logger.Warn("condition evaluation failed", logging.Err(err))
			return s.finish(ctx, req, start, false, enrichment.NewFailureResponse(req, s.provider.Name(), err))
		}
		if !proceed {
			logger.Debug("condition not met, skipping enrichment")
			return s.finish(ctx, req, start, false, &enrichment.Response{
				Success:        true,
				Data:           req.Source,
				EnrichmentType: req.EnrichmentType,
				PolicyUsed:     req.Policy,
				Message:        "condition not met, enrichment skipped",
				Metadata:       map[string]string{"skipped": "true"},
				Timestamp:      time.Now().UTC(),
				RequestID:      req.RequestID,
			})
		}
	}

	key := s.keys.Build(req.TenantID, s.provider.Name(), req.EnrichmentType, req.Parameters)

	if !req.BypassCache {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.metrics.CacheHit()
			logger.Debug("cache hit", logging.String("key", key))

			response := cached.WithMetadata("cache_hit", "true")
			response.RequestID = req.RequestID
			return s.finish(ctx, req, start, true, response)
		}
		s.metrics.CacheMiss()
	}

	s.metrics.ProviderCall()
	payload, err := s.provider.Fetch(ctx, req)
	if err != nil {
		s.metrics.ProviderError()
		logger.Warn("provider fetch failed", logging.Err(err))
		return s.finish(ctx, req, start, false, enrichment.NewFailureResponse(req, s.provider.Name(), err))
	}

	response, err := s.assemble(req, payload)
	if err != nil {
		logger.Warn("enrichment assembly failed", logging.Err(err))
		return s.finish(ctx, req, start, false, enrichment.NewFailureResponse(req, s.provider.Name(), err))
	}

	s.metrics.FieldsEnriched(response.FieldsEnriched)

	if !req.BypassCache {
		s.cache.Put(ctx, key, response)
	}

	logger.Info("enrichment completed",
		logging.Int("fields_enriched", response.FieldsEnriched),
		logging.Duration("duration", time.Since(start)))

	return s.finish(ctx, req, start, false, response)
}

// assemble maps the raw payload and applies the merge policy.
func (s *Service) assemble(req enrichment.Request, payload map[string]interface{}) (*enrichment.Response, error) {
	response := &enrichment.Response{
		Success:        true,
		EnrichmentType: req.EnrichmentType,
		PolicyUsed:     req.Policy,
		ProviderName:   s.provider.Name(),
		Message:        "enrichment completed",
		Timestamp:      time.Now().UTC(),
		RequestID:      req.RequestID,
	}

	if req.IncludeRaw {
		response.RawPayload = payload
	}

	// Raw short-circuits mapping and merging entirely.
	if req.Policy == enrichment.PolicyRaw {
		response.Data = payload
		response.RawPayload = payload
		return response, nil
	}

	integration := s.integration(req.EnrichmentType)

	mapped, err := integration.Mapper.Map(payload)
	if err != nil {
		return nil, errors.MappingError(
			fmt.Sprintf("failed to map %s payload", req.EnrichmentType), err)
	}

	source := req.Source
	if source == nil {
		source = map[string]interface{}{}
	}

	merged, fieldsEnriched, err := s.merger.Apply(req.Policy, source, mapped, integration.TargetShape)
	if err != nil {
		return nil, err
	}

	response.Data = merged
	response.FieldsEnriched = fieldsEnriched
	return response, nil
}

// finish records the outcome and returns the response unchanged.
func (s *Service) finish(ctx context.Context, req enrichment.Request, start time.Time, cacheHit bool, response *enrichment.Response) *enrichment.Response {
	if s.history == nil {
		return response
	}

	record := storage.EnrichmentRecord{
		RequestID:      req.RequestID,
		TenantID:       req.TenantID,
		EnrichmentType: req.EnrichmentType,
		MergePolicy:    string(req.Policy),
		ProviderName:   s.provider.Name(),
		Success:        response.Success,
		CacheHit:       cacheHit,
		FieldsEnriched: response.FieldsEnriched,
		Error:          response.Error,
		Duration:       time.Since(start),
	}

	// History outlives a per-request timeout.
	if err := s.history.Record(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Warn("failed to record enrichment history",
			logging.String("request_id", req.RequestID),
			logging.Err(err))
	}

	return response
}
