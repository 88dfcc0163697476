package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/filtering"
	"github.com/spigell/ikimatch/internal/profiles"
)

// Pool loads the eligible candidates for a requester.
type Pool struct {
	store   profiles.Store
	filters []filtering.Filter
	logger  *zap.Logger
}

// NewPool wraps store with an already validated filter chain.
func NewPool(store profiles.Store, filters []filtering.Filter, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{store: store, filters: filters, logger: logger}
}

// Load returns the requester's candidate pool in store order. An empty pool is
// not an error.
func (p *Pool) Load(ctx context.Context, requesterID string) ([]*profiles.Profile, error) {
	items, err := p.store.ListSearchableProfiles(ctx, requesterID)
	if err != nil {
		return nil, StoreError(err)
	}

	list, err := filtering.Run(ctx, filtering.Deps{Logger: p.logger, RequesterID: requesterID}, p.filters, &profiles.Profiles{Items: items})
	if err != nil {
		return nil, StoreError(err)
	}

	return list.Items, nil
}
