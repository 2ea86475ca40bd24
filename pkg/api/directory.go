package api

import (
	"context"
	"errors"
	"time"

	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/directory"
	"github.com/trainhub/trainhub/pkg/observability"
)

// instrumentedStore records directory lookup outcomes and latency
type instrumentedStore struct {
	store   directory.Store
	metrics *observability.Metrics
}

func newInstrumentedStore(store directory.Store, metrics *observability.Metrics) directory.Store {
	if metrics == nil {
		return store
	}
	return &instrumentedStore{store: store, metrics: metrics}
}

func (s *instrumentedStore) LookupByTelegramID(ctx context.Context, telegramID string) (*directory.User, error) {
	start := time.Now()
	user, err := s.store.LookupByTelegramID(ctx, telegramID)

	result := "found"
	switch {
	case errors.Is(err, directory.ErrUserNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.metrics.ObserveDirectoryLookup(result, time.Since(start))

	return user, err
}

func (s *instrumentedStore) GroupByAccessCode(ctx context.Context, code string) (*directory.Group, error) {
	return s.store.GroupByAccessCode(ctx, code)
}

func (s *instrumentedStore) Register(ctx context.Context, profile directory.Profile, role auth.Role, group *directory.Group) (*directory.User, error) {
	return s.store.Register(ctx, profile, role, group)
}
