package backend

import (
	"fmt"
	"time"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/opac"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Pool hands out one adapter instance per (library, account) pair so that
// the instance's session survives between calls. Instances idle for longer
// than the ttl are dropped and a fresh one is created on the next Get.
type Pool struct {
	registry *Registry
	deps     Deps
	cache    *expirable.LRU[string, API]
}

func NewPool(registry *Registry, deps Deps, size int, ttl time.Duration) Pool {
	assert.NotNil(registry)
	assert.NotNil(deps.Time)
	assert.NotNil(deps.Tel)
	assert.Positive(size)

	return Pool{
		registry: registry,
		deps:     deps,
		cache:    expirable.NewLRU[string, API](size, nil, ttl),
	}
}

func poolKey(lib opac.Library, accountID string) string {
	return fmt.Sprintf("%s\x00%s", lib.Ident, accountID)
}

// Get returns the instance for lib used on behalf of accountID, an empty
// accountID is the anonymous instance used for searching.
func (p Pool) Get(lib opac.Library, accountID string) (API, error) {
	key := poolKey(lib, accountID)
	cached, hit := p.cache.Get(key)
	if hit {
		return cached, nil
	}

	api, err := p.registry.New(lib, p.deps)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, api)
	return api, nil
}

// Forget drops the instance so that the next Get starts a new session.
func (p Pool) Forget(lib opac.Library, accountID string) {
	p.cache.Remove(poolKey(lib, accountID))
}

func (p Pool) Len() int {
	return p.cache.Len()
}
