// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"

	"github.com/epochtally/tally/lvldb"
	"github.com/epochtally/tally/tally"
)

func newTestState(t *testing.T) *State {
	kv, err := lvldb.NewMem()
	assert.Nil(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv)
}

func TestStorage(t *testing.T) {
	st := newTestState(t)

	ns := tally.BytesToAddress([]byte("ns"))
	key := tally.Blake2b([]byte("key"))
	value := tally.BytesToBytes32([]byte("value"))

	got, err := st.GetStorage(ns, key)
	assert.Nil(t, err)
	assert.True(t, got.IsZero())

	st.SetStorage(ns, key, value)
	got, err = st.GetStorage(ns, key)
	assert.Nil(t, err)
	assert.Equal(t, value, got)

	// same key under another namespace is untouched
	other := tally.BytesToAddress([]byte("other"))
	got, err = st.GetStorage(other, key)
	assert.Nil(t, err)
	assert.True(t, got.IsZero())

	// zero value deletes
	st.SetStorage(ns, key, tally.Bytes32{})
	got, err = st.GetStorage(ns, key)
	assert.Nil(t, err)
	assert.True(t, got.IsZero())
}

func TestEncodeDecodeStorage(t *testing.T) {
	st := newTestState(t)

	ns := tally.BytesToAddress([]byte("ns"))
	key := tally.Blake2b([]byte("entry"))

	type entry struct {
		Amount uint64
		Note   string
	}

	assert.Nil(t, st.EncodeStorage(ns, key, func() ([]byte, error) {
		return rlp.EncodeToBytes(&entry{42, "note"})
	}))

	var decoded entry
	assert.Nil(t, st.DecodeStorage(ns, key, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &decoded)
	}))
	assert.Equal(t, entry{42, "note"}, decoded)
}

func TestCheckpointRevert(t *testing.T) {
	st := newTestState(t)

	ns := tally.BytesToAddress([]byte("ns"))
	key := tally.Blake2b([]byte("key"))
	v1 := tally.BytesToBytes32([]byte("v1"))
	v2 := tally.BytesToBytes32([]byte("v2"))

	st.SetStorage(ns, key, v1)

	cp := st.Checkpoint()
	st.SetStorage(ns, key, v2)
	got, _ := st.GetStorage(ns, key)
	assert.Equal(t, v2, got)

	st.RevertTo(cp)
	got, _ = st.GetStorage(ns, key)
	assert.Equal(t, v1, got)

	// rewriting a slot twice inside a reverted checkpoint must leave it
	// readable with its pre-checkpoint value
	cp = st.Checkpoint()
	st.SetStorage(ns, key, v2)
	st.SetStorage(ns, key, tally.BytesToBytes32([]byte("v3")))
	st.RevertTo(cp)
	got, err := st.GetStorage(ns, key)
	assert.Nil(t, err)
	assert.Equal(t, v1, got)
}

func TestCommit(t *testing.T) {
	kv, err := lvldb.NewMem()
	assert.Nil(t, err)
	defer kv.Close()

	ns := tally.BytesToAddress([]byte("ns"))
	key := tally.Blake2b([]byte("key"))
	value := tally.BytesToBytes32([]byte("value"))

	st := New(kv)
	st.SetStorage(ns, key, value)
	assert.Nil(t, st.Commit())

	// a fresh state over the same store sees committed data
	st2 := New(kv)
	got, err := st2.GetStorage(ns, key)
	assert.Nil(t, err)
	assert.Equal(t, value, got)

	// delete and commit
	st2.SetStorage(ns, key, tally.Bytes32{})
	assert.Nil(t, st2.Commit())

	st3 := New(kv)
	got, err = st3.GetStorage(ns, key)
	assert.Nil(t, err)
	assert.True(t, got.IsZero())
}
