package mappings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RepositoryPort abstracts mapping storage for the resolver.
type RepositoryPort interface {
	GetMany(ctx context.Context, companyID int64, codes []Code) (map[Code]int64, error)
}

// Resolver resolves semantic codes to account ids with a read-through Redis
// cache. Cache trouble degrades to the database; a missing mapping is always
// a hard error.
type Resolver struct {
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolver builds Resolver. cache may be nil.
func NewResolver(repo RepositoryPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(companyID int64, code Code) string {
	return fmt.Sprintf("mappings:%d:%s", companyID, code)
}

// Resolve returns an account id for every requested code or fails with
// MissingMappingError naming all unresolved codes.
func (r *Resolver) Resolve(ctx context.Context, companyID int64, codes ...Code) (map[Code]int64, error) {
	resolved := make(map[Code]int64, len(codes))
	var misses []Code
	for _, code := range codes {
		if id, ok := r.cacheGet(ctx, companyID, code); ok {
			resolved[code] = id
			continue
		}
		misses = append(misses, code)
	}

	if len(misses) > 0 {
		fromDB, err := r.repo.GetMany(ctx, companyID, misses)
		if err != nil {
			return nil, err
		}
		var missing []Code
		for _, code := range misses {
			id, ok := fromDB[code]
			if !ok {
				missing = append(missing, code)
				continue
			}
			resolved[code] = id
			r.cacheSet(ctx, companyID, code, id)
		}
		if len(missing) > 0 {
			return nil, &MissingMappingError{CompanyID: companyID, Codes: missing}
		}
	}
	return resolved, nil
}

// Invalidate drops cached entries for a company, used after admins edit the
// mapping table.
func (r *Resolver) Invalidate(ctx context.Context, companyID int64, codes ...Code) {
	if r.cache == nil {
		return
	}
	for _, code := range codes {
		if err := r.cache.Del(ctx, cacheKey(companyID, code)).Err(); err != nil && r.logger != nil {
			r.logger.Warn("mapping cache invalidate", slog.Any("error", err))
		}
	}
}

func (r *Resolver) cacheGet(ctx context.Context, companyID int64, code Code) (int64, bool) {
	if r.cache == nil {
		return 0, false
	}
	val, err := r.cache.Get(ctx, cacheKey(companyID, code)).Result()
	if err != nil {
		if err != redis.Nil && r.logger != nil {
			r.logger.Warn("mapping cache get", slog.Any("error", err))
		}
		return 0, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *Resolver) cacheSet(ctx context.Context, companyID int64, code Code, accountID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(companyID, code), strconv.FormatInt(accountID, 10), r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.Warn("mapping cache set", slog.Any("error", err))
	}
}
