// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOrLoad(t *testing.T) {
	c, err := NewLRU(8)
	assert.Nil(t, err)

	loads := 0
	loader := func(key interface{}) (interface{}, error) {
		loads++
		return key.(int) * 2, nil
	}

	v, err := c.GetOrLoad(21, loader)
	assert.Nil(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, loads)

	// second get is served from cache
	v, err = c.GetOrLoad(21, loader)
	assert.Nil(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, loads)

	_, err = c.GetOrLoad(1, func(interface{}) (interface{}, error) {
		return nil, errors.New("load failed")
	})
	assert.Error(t, err)
}
