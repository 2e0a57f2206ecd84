// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides a small LRU for hot read paths, such as sealed
// report summaries.
package cache

import lru "github.com/hashicorp/golang-lru"

// LRU wraps golang-lru with a load-through read.
type LRU struct {
	*lru.Cache
}

// NewLRU creates a cache holding at most maxSize entries.
// maxSize must be positive.
func NewLRU(maxSize int) (*LRU, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{cache}, nil
}

// Loader produces the value for a missing key.
type Loader func(key interface{}) (interface{}, error)

// GetOrLoad returns the cached value for key, calling loader and
// caching its result on a miss. A loader error caches nothing.
func (l *LRU) GetOrLoad(key interface{}, loader Loader) (interface{}, error) {
	if v, ok := l.Get(key); ok {
		return v, nil
	}
	v, err := loader(key)
	if err != nil {
		return nil, err
	}

	l.Add(key, v)
	return v, nil
}
