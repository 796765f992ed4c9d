package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/common/logging"
	"enrichment-service/internal/common/utils"
	"enrichment-service/internal/enrichment"
)

// EnrichBatch runs a batch of enrichment requests and returns one response
// per request, in request order.
//
// Items sharing a canonical cache key are executed once and their result is
// fanned out to every holding position, so a batch of duplicates costs one
// provider call regardless of cache state. Work across distinct keys runs
// concurrently, bounded by the configured batch concurrency. An individual
// invalid item becomes a failure response at its position without blocking
// its siblings; only a batch exceeding the size cap fails as a whole.
func (s *Service) EnrichBatch(ctx context.Context, requests []enrichment.Request) ([]*enrichment.Response, error) {
	if len(requests) > s.batchMaxSize {
		return nil, errors.ValidationError(
			fmt.Sprintf("batch size %d exceeds maximum %d", len(requests), s.batchMaxSize))
	}

	s.metrics.BatchSize(len(requests))

	if len(requests) == 0 {
		return []*enrichment.Response{}, nil
	}

	batchID := utils.GenerateBatchID()
	logger := s.logger.WithFields(
		logging.String("batch_id", batchID),
		logging.Int("batch_size", len(requests)))

	responses := make([]*enrichment.Response, len(requests))
	prepared := make([]enrichment.Request, len(requests))

	// Group valid items by canonical key. Invalid items settle immediately
	// and never reach the provider or the cache.
	groups := make(map[string][]int, len(requests))
	keys := make([]string, 0, len(requests))

	for i, req := range requests {
		req = req.WithDefaults(s.generateID)
		prepared[i] = req

		if err := req.Validate(); err != nil {
			responses[i] = enrichment.NewFailureResponse(req, s.provider.Name(), err)
			continue
		}

		key := s.keys.Build(req.TenantID, s.provider.Name(), req.EnrichmentType, req.Parameters)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}

	logger.Debug("batch grouped", logging.Int("unique_keys", len(keys)))

	// One execution per unique key. Workers never return errors, so one
	// item's failure cannot cancel its siblings.
	results := make([]*enrichment.Response, len(keys))

	group := new(errgroup.Group)
	group.SetLimit(s.batchConcurrency)

	for i, key := range keys {
		i := i
		representative := prepared[groups[key][0]]
		group.Go(func() error {
			results[i] = s.enrich(ctx, representative)
			return nil
		})
	}
	_ = group.Wait()

	// Fan each result out to every position holding its key. Duplicates get
	// identical content under their own request IDs.
	for i, key := range keys {
		for _, position := range groups[key] {
			response := *results[i]
			response.RequestID = prepared[position].RequestID
			responses[position] = &response
		}
	}

	logger.Info("batch completed")
	return responses, nil
}
