package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrClientNotFound is returned by repositories when a client UUID has no row.
var ErrClientNotFound = errors.New("client not found")

type ClientRepo interface {
	Create(ctx context.Context, client *model.ClientRegistration) error
	GetByUUID(ctx context.Context, clientUUID string) (*model.ClientRegistration, error)
	TouchLastSeen(ctx context.Context, clientUUID string, seenAt time.Time, sourceIP string) error
	Deactivate(ctx context.Context, clientUUID string) error
	List(ctx context.Context, limit, offset int) ([]*model.ClientRegistration, error)
}

// ClientCache is an optional read-through cache in front of the repo
// (redis-backed in production, absent in tests).
type ClientCache interface {
	Get(ctx context.Context, clientUUID string) (*model.ClientRegistration, bool)
	Set(ctx context.Context, client *model.ClientRegistration)
	Invalidate(ctx context.Context, clientUUID string)
}

// ClientRegistry validates client identifiers for the auth guard and
// manages registrations. It also owns the per-client rate limiters.
type ClientRegistry struct {
	repo  ClientRepo
	cache ClientCache

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rateCfg   config.RateLimitConfig
	touchWait time.Duration
}

func NewClientRegistry(repo ClientRepo, cache ClientCache, rateCfg config.RateLimitConfig) *ClientRegistry {
	return &ClientRegistry{
		repo:      repo,
		cache:     cache,
		limiters:  make(map[string]*rate.Limiter),
		rateCfg:   rateCfg,
		touchWait: 3 * time.Second,
	}
}

// Validate resolves a client identifier for the guard. On success it fires
// a best-effort lastSeen touch off the request's critical path.
func (s *ClientRegistry) Validate(ctx context.Context, clientUUID, sourceIP string) (*model.ClientRegistration, error) {
	if s.cache != nil {
		if client, ok := s.cache.Get(ctx, clientUUID); ok {
			return s.checkActive(client, sourceIP)
		}
	}

	client, err := s.repo.GetByUUID(ctx, clientUUID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, apperrors.New(apperrors.ErrUnknownClient, "client identifier is not registered", nil)
		}
		return nil, apperrors.New(apperrors.ErrInternal, "client lookup failed", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, client)
	}
	return s.checkActive(client, sourceIP)
}

func (s *ClientRegistry) checkActive(client *model.ClientRegistration, sourceIP string) (*model.ClientRegistration, error) {
	if !client.IsActive {
		return nil, apperrors.New(apperrors.ErrClientDisabled, "client is deactivated", nil)
	}
	s.touchLastSeen(client.ClientUUID, sourceIP)
	return client, nil
}

// touchLastSeen is fire-and-forget: a slow or failing persistence layer
// must not stall request latency. Last write wins.
func (s *ClientRegistry) touchLastSeen(clientUUID, sourceIP string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.touchWait)
		defer cancel()
		if err := s.repo.TouchLastSeen(ctx, clientUUID, time.Now().UTC(), sourceIP); err != nil {
			logger.Warn("last seen update failed", "client_uuid", clientUUID, "error", err)
		}
	}()
}

// Register creates a new active client registration.
func (s *ClientRegistry) Register(ctx context.Context, req model.RegisterClientRequest, sourceIP string) (*model.ClientRegistration, error) {
	client := &model.ClientRegistration{
		ClientUUID:  uuid.New().String(),
		ClientType:  req.ClientType,
		Description: req.ClientDescription,
		IsActive:    true,
		SourceIP:    sourceIP,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, client)
	}
	return client, nil
}

// Deactivate disables a client. Registrations are never hard-deleted.
func (s *ClientRegistry) Deactivate(ctx context.Context, clientUUID string) error {
	if err := s.repo.Deactivate(ctx, clientUUID); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return apperrors.New(apperrors.ErrNotFound, "client not found", nil)
		}
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, clientUUID)
	}
	return nil
}

func (s *ClientRegistry) List(ctx context.Context, limit, offset int) ([]*model.ClientRegistration, error) {
	return s.repo.List(ctx, limit, offset)
}

// LimiterFor lazily creates the token bucket for one client.
func (s *ClientRegistry) LimiterFor(clientUUID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[clientUUID]; ok {
		return l
	}
	qps := rate.Limit(s.rateCfg.QPS)
	if qps <= 0 {
		qps = rate.Inf
	}
	burst := s.rateCfg.Burst
	if burst <= 0 {
		burst = 1
	}
	l := rate.NewLimiter(qps, burst)
	s.limiters[clientUUID] = l
	return l
}
