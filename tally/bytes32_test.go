// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tally

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytes32(t *testing.T) {
	b := BytesToBytes32([]byte("tally"))
	assert.False(t, b.IsZero())
	assert.True(t, Bytes32{}.IsZero())

	parsed, err := ParseBytes32(b.String())
	assert.Nil(t, err)
	assert.Equal(t, b, parsed)

	_, err = ParseBytes32("0xqq")
	assert.Error(t, err)

	data, err := json.Marshal(&b)
	assert.Nil(t, err)
	var back Bytes32
	assert.Nil(t, json.Unmarshal(data, &back))
	assert.Equal(t, b, back)
}

func TestAddress(t *testing.T) {
	addr := BytesToAddress([]byte("a1"))
	assert.False(t, addr.IsZero())

	parsed, err := ParseAddress(addr.String())
	assert.Nil(t, err)
	assert.Equal(t, addr, *parsed)

	_, err = ParseAddress("not-an-address")
	assert.Error(t, err)
}

func TestBlake2b(t *testing.T) {
	single := Blake2b([]byte("hello"))
	multi := Blake2b([]byte("he"), []byte("llo"))
	assert.Equal(t, single, multi)
	assert.NotEqual(t, single, Blake2b([]byte("world")))
}
