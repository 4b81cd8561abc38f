package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddConfirmRemove(t *testing.T) {
	reg := newHotkeyRegistry()
	now := time.Now()

	reg.add("hk-1", []string{"k"}, []string{"command"}, now)
	assert.True(t, reg.has("hk-1"))
	assert.False(t, reg.has("hk-2"))
	assert.Equal(t, 1, reg.count())

	entry, ok := reg.view("hk-1")
	require.True(t, ok)
	assert.Equal(t, []string{"k"}, entry.Keys)
	assert.Equal(t, RegStatePending, entry.State)

	reg.confirm("hk-1")
	entry, ok = reg.view("hk-1")
	require.True(t, ok)
	assert.Equal(t, RegStateConfirmed, entry.State)

	//confirming an id that never registered is harmless
	reg.confirm("hk-2")

	reg.remove("hk-1")
	assert.False(t, reg.has("hk-1"))
	assert.Equal(t, 0, reg.count())

	_, ok = reg.view("hk-1")
	assert.False(t, ok)
}

func TestRegistryOps(t *testing.T) {
	reg := newHotkeyRegistry()
	now := time.Now()

	reg.add("hk-1", []string{"a"}, nil, now)
	op, ok := reg.takeOp("hk-1")
	require.True(t, ok)
	assert.Equal(t, opRegister, op.kind)

	//takeOp consumes the entry
	_, ok = reg.takeOp("hk-1")
	assert.False(t, ok)

	reg.trackUnregister("hk-1", now)
	op, ok = reg.takeOp("hk-1")
	require.True(t, ok)
	assert.Equal(t, opUnregister, op.kind)

	reg.add("hk-2", []string{"b"}, nil, now)
	reg.dropOp("hk-2")
	_, ok = reg.takeOp("hk-2")
	assert.False(t, ok)

	assert.Equal(t, "register", opRegister.String())
	assert.Equal(t, "unregister", opUnregister.String())
}

func TestRegistrySweepPromotesStaleRegisters(t *testing.T) {
	reg := newHotkeyRegistry()
	base := time.Now()

	reg.add("hk-old", []string{"a"}, nil, base.Add(-time.Minute))
	reg.add("hk-new", []string{"b"}, nil, base)
	reg.trackUnregister("hk-gone", base.Add(-time.Minute))

	evicted := reg.sweep(base, 10*time.Second)
	assert.ElementsMatch(t, []string{"hk-old", "hk-gone"}, evicted)

	//the stale register keeps its optimistic entry, now confirmed
	entry, ok := reg.view("hk-old")
	require.True(t, ok)
	assert.Equal(t, RegStateConfirmed, entry.State)

	entry, ok = reg.view("hk-new")
	require.True(t, ok)
	assert.Equal(t, RegStatePending, entry.State)

	_, ok = reg.takeOp("hk-old")
	assert.False(t, ok)
	_, ok = reg.takeOp("hk-new")
	assert.True(t, ok)
}

func TestRegistryListOrder(t *testing.T) {
	reg := newHotkeyRegistry()
	base := time.Now()

	reg.add("hk-b", []string{"b"}, nil, base.Add(time.Second))
	reg.add("hk-c", []string{"c"}, []string{"shift"}, base)
	reg.add("hk-a", []string{"a"}, nil, base)
	reg.confirm("hk-b")

	regs := reg.list()
	require.Len(t, regs, 3)
	assert.Equal(t, "hk-a", regs[0].ID)
	assert.Equal(t, "hk-c", regs[1].ID)
	assert.Equal(t, "hk-b", regs[2].ID)
	assert.Equal(t, RegStatePending, regs[0].State)
	assert.Equal(t, RegStateConfirmed, regs[2].State)

	//listed slices are copies
	regs[1].Modifiers[0] = "mutated"
	entry, ok := reg.view("hk-c")
	require.True(t, ok)
	assert.Equal(t, "shift", entry.Modifiers[0])
}

func TestRegistryClear(t *testing.T) {
	reg := newHotkeyRegistry()
	now := time.Now()

	reg.add("hk-1", []string{"a"}, nil, now)
	reg.add("hk-2", []string{"b"}, nil, now)

	assert.Equal(t, 2, reg.clear())
	assert.Equal(t, 0, reg.count())
	assert.Empty(t, reg.list())
	assert.Equal(t, 0, reg.clear())
}
