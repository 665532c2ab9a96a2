package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-integrations/core"
)

const credentialCacheKeyPrefix = "go-integrations::credential::v1"

// CachedCredentialStore layers a read-through cache on top of a credential
// store. Writes and deletes invalidate the provider's cache entry.
type CachedCredentialStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey returns the deterministic cache key for credential
// reads: go-integrations::credential::v1::<provider> with the provider
// segment URL-path escaped after normalization.
func CredentialCacheKey(provider string) (string, error) {
	normalized := strings.TrimSpace(strings.ToLower(provider))
	if normalized == "" {
		return "", fmt.Errorf("sqlstore: provider is required")
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(normalized), nil
}

func (s *CachedCredentialStore) SaveSnapshot(ctx context.Context, in core.SaveCredentialInput) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.SaveSnapshot(ctx, in); err != nil {
		return err
	}
	cacheKey, err := CredentialCacheKey(in.Provider)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedCredentialStore) GetByProvider(ctx context.Context, provider string) (core.StoredCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.StoredCredential{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(provider)
	if err != nil {
		return core.StoredCredential{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.StoredCredential, error) {
		return s.base.GetByProvider(ctx, provider)
	})
}

func (s *CachedCredentialStore) DeleteByProvider(ctx context.Context, provider string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.DeleteByProvider(ctx, provider); err != nil {
		return err
	}
	cacheKey, err := CredentialCacheKey(provider)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

// LoadAll always reads through to the base store: hydration wants the
// authoritative row set, not a partially warmed cache.
func (s *CachedCredentialStore) LoadAll(ctx context.Context) ([]core.StoredCredential, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	return s.base.LoadAll(ctx)
}

var _ core.CredentialStore = (*CachedCredentialStore)(nil)
