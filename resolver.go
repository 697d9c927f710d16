package evbus

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultResolverCacheSize = 256

// resolver computes, for a concrete event type, the set of registered
// listening types the event must be matched against: the type itself plus
// every registered interface type it is assignable to. Go type
// relationships are static, so an entry stays valid until a
// previously-unseen type key is registered; the registry generation
// detects that.
type resolver struct {
	cache *lru.Cache[reflect.Type, cachedTypes]
}

type cachedTypes struct {
	gen   uint64
	types []reflect.Type
}

func newResolver(size int) (*resolver, error) {
	cache, err := lru.New[reflect.Type, cachedTypes](size)
	if err != nil {
		return nil, err
	}
	return &resolver{cache: cache}, nil
}

// listeningTypes returns the registered type keys the concrete type is
// assignable to, memoized per concrete type.
func (r *resolver) listeningTypes(concrete reflect.Type, reg *registry) []reflect.Type {
	gen := reg.generation()
	if v, ok := r.cache.Get(concrete); ok && v.gen == gen {
		return v.types
	}

	var types []reflect.Type
	for _, key := range reg.keys() {
		if concrete.AssignableTo(key) {
			types = append(types, key)
		}
	}
	r.cache.Add(concrete, cachedTypes{gen: gen, types: types})
	return types
}

// purge clears the cache. Used by Reset.
func (r *resolver) purge() {
	r.cache.Purge()
}
