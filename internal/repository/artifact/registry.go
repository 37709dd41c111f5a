package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/document"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	logModule = "Artifact"
	keyPrefix = "artifact:"
)

var ErrArtifactNotFound = errors.New("download link is invalid or has expired")

// Registry maps opaque download tokens to generated files. Redis is used
// when available so tokens survive restarts; the in-process cache is the
// fallback and a read-through layer.
type Registry struct {
	rdb    *redis.Client
	local  *cache.Cache
	ttl    time.Duration
	logger logger.ILogger
}

// NewRegistry builds a registry; rdb may be nil
func NewRegistry(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Registry{
		rdb:    rdb,
		local:  cache.New(ttl, 30*time.Minute),
		ttl:    ttl,
		logger: log,
	}
}

func (r *Registry) Register(ctx context.Context, a *document.Artifact) (string, error) {
	if a == nil || a.Path == "" {
		return "", fmt.Errorf("register artifact: empty artifact")
	}
	token := uuid.NewString()
	r.local.Set(token, a, r.ttl)

	if r.rdb != nil {
		data, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("register artifact: %w", err)
		}
		if err := r.rdb.Set(ctx, keyPrefix+token, data, r.ttl).Err(); err != nil {
			r.logger.Warn(logModule, "Redis unavailable, token kept in memory only", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	r.logger.Info(logModule, "Artifact registered", map[string]interface{}{
		"name": a.Name,
		"kind": string(a.Kind),
		"size": a.Size,
	})
	return token, nil
}

func (r *Registry) Resolve(ctx context.Context, token string) (*document.Artifact, error) {
	if token == "" {
		return nil, ErrArtifactNotFound
	}
	if x, ok := r.local.Get(token); ok {
		return x.(*document.Artifact), nil
	}
	if r.rdb == nil {
		return nil, ErrArtifactNotFound
	}

	data, err := r.rdb.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve artifact: %w", err)
	}
	var a document.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("resolve artifact: %w", err)
	}
	r.local.Set(token, &a, cache.DefaultExpiration)
	return &a, nil
}
