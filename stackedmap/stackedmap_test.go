// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epochtally/tally/stackedmap"
)

func TestStackedMap(t *testing.T) {
	src := map[string]string{"base": "b"}
	sm := stackedmap.New(func(key string) (string, bool, error) {
		v, ok := src[key]
		return v, ok, nil
	})

	// reads fall through to src
	v, ok, err := sm.Get("base")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	cp0 := sm.Push()
	sm.Put("k", "v1")

	cp1 := sm.Push()
	sm.Put("k", "v2")
	v, ok, _ = sm.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	// revert to cp1 restores v1
	sm.PopTo(cp1)
	v, ok, _ = sm.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	// revert everything
	sm.PopTo(cp0)
	_, ok, _ = sm.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, sm.Depth())
}

func TestStackedMapRewriteThenRevert(t *testing.T) {
	src := map[string]string{"k": "base"}
	sm := stackedmap.New(func(key string) (string, bool, error) {
		v, ok := src[key]
		return v, ok, nil
	})

	cp := sm.Push()
	sm.Push()
	// rewriting a key within one level must not leak revisions past Pop
	sm.Put("k", "v1")
	sm.Put("k", "v2")
	sm.PopTo(cp + 1)

	v, ok, err := sm.Get("k")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, "base", v)

	sm.Put("k", "v3")
	sm.Put("k", "v4")
	v, ok, _ = sm.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v4", v)

	sm.PopTo(cp)
	v, ok, _ = sm.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "base", v)
}

func TestStackedMapJournal(t *testing.T) {
	sm := stackedmap.New(func(key string) (string, bool, error) {
		return "", false, nil
	})

	sm.Push()
	sm.Put("a", "1")
	sm.Push()
	sm.Put("b", "2")
	sm.Put("a", "3")

	var seen []string
	sm.Journal(func(k, v string) bool {
		seen = append(seen, k+"="+v)
		return true
	})
	assert.Equal(t, []string{"a=1", "b=2", "a=3"}, seen)
}
