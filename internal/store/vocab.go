package store

import (
	"context"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const vocabCacheSize = 65536

// Vocab interns classification codes as small integer ids. Doc records store
// id arrays instead of repeating long code strings; the forward and reverse
// maps live in Redis and survive restarts, fronted by in-process LRU caches.
type Vocab struct {
	store *Store
	fwd   *lru.Cache[string, int64]
	rev   *lru.Cache[int64, string]
}

func newVocab(s *Store) *Vocab {
	fwd, _ := lru.New[string, int64](vocabCacheSize)
	rev, _ := lru.New[int64, string](vocabCacheSize)
	return &Vocab{store: s, fwd: fwd, rev: rev}
}

// Encode returns the id for every code, allocating ids for codes not yet in
// the vocabulary. Duplicate and empty codes are tolerated.
func (v *Vocab) Encode(ctx context.Context, codes []string) (map[string]int64, error) {
	out := make(map[string]int64, len(codes))
	var misses []string
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if id, ok := v.fwd.Get(code); ok {
			out[code] = id
		} else {
			misses = append(misses, code)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	raw, err := v.store.rdb.HMGet(ctx, v.store.vocabFwdKey(), misses...).Result()
	if err != nil {
		return nil, err
	}
	var unknown []string
	for i, code := range misses {
		if raw[i] == nil {
			unknown = append(unknown, code)
			continue
		}
		str, _ := raw[i].(string)
		id, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			unknown = append(unknown, code)
			continue
		}
		out[code] = id
		v.cache(code, id)
	}
	if len(unknown) == 0 {
		return out, nil
	}

	// Allocate ids one INCR apiece, then persist both directions in a
	// single pipeline. Concurrent writers may burn ids racing on the same
	// code; HSETNX keeps the first mapping authoritative.
	for _, code := range unknown {
		id, err := v.store.rdb.Incr(ctx, v.store.vocabSeqKey()).Result()
		if err != nil {
			return nil, err
		}
		set, err := v.store.rdb.HSetNX(ctx, v.store.vocabFwdKey(), code, id).Result()
		if err != nil {
			return nil, err
		}
		if !set {
			existing, err := v.store.rdb.HGet(ctx, v.store.vocabFwdKey(), code).Result()
			if err != nil {
				return nil, err
			}
			id, err = strconv.ParseInt(existing, 10, 64)
			if err != nil {
				return nil, err
			}
		} else {
			if err := v.store.rdb.HSet(ctx, v.store.vocabRevKey(), strconv.FormatInt(id, 10), code).Err(); err != nil {
				return nil, err
			}
		}
		out[code] = id
		v.cache(code, id)
	}
	return out, nil
}

// Decode maps ids back to code strings. Unknown ids are omitted.
func (v *Vocab) Decode(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	var misses []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if code, ok := v.rev.Get(id); ok {
			out[id] = code
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	fields := make([]string, len(misses))
	for i, id := range misses {
		fields[i] = strconv.FormatInt(id, 10)
	}
	raw, err := v.store.rdb.HMGet(ctx, v.store.vocabRevKey(), fields...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	for i, id := range misses {
		code, _ := raw[i].(string)
		if code == "" {
			continue
		}
		out[id] = code
		v.cache(code, id)
	}
	return out, nil
}

func (v *Vocab) cache(code string, id int64) {
	v.fwd.Add(code, id)
	v.rev.Add(id, code)
}
