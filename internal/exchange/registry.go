package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// CredentialSource resolves a user's active API credentials for a venue.
type CredentialSource interface {
	CredentialsFor(ctx context.Context, venue string, userID uint) (Credentials, error)
}

// CachedRegistry builds REST connectors on demand and caches them per
// (venue, user). Connectors are stateless apart from their rate limiter, so
// sharing one per pair keeps venue rate limits honest across requests.
type CachedRegistry struct {
	creds  CredentialSource
	logger *logrus.Logger

	mu    sync.RWMutex
	cache map[string]Connector
}

func NewCachedRegistry(creds CredentialSource, logger *logrus.Logger) *CachedRegistry {
	return &CachedRegistry{
		creds:  creds,
		logger: logger,
		cache:  make(map[string]Connector),
	}
}

func (r *CachedRegistry) Resolve(ctx context.Context, venue string, userID uint) (Connector, error) {
	key := fmt.Sprintf("%s:%d", venue, userID)

	r.mu.RLock()
	conn, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return conn, nil
	}

	creds, err := r.creds.CredentialsFor(ctx, venue, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.cache[key]; ok {
		return conn, nil
	}
	conn = NewRESTConnector(Profile(venue), creds, r.logger)
	r.cache[key] = conn
	r.logger.WithFields(logrus.Fields{"venue": venue, "user": userID}).Info("exchange connector created")
	return conn, nil
}

// Invalidate drops the cached connector for a (venue, user) pair, forcing a
// rebuild with fresh credentials on the next Resolve.
func (r *CachedRegistry) Invalidate(venue string, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, fmt.Sprintf("%s:%d", venue, userID))
}
