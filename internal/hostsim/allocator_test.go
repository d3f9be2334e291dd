package hostsim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
)

func TestAllocateBumpsAndZeroesOnDemand(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 64))

	p := a.Allocate(16)
	require.Len(t, p, 16)
	for i := range p {
		p[i] = 0xFF
	}
	hostsim.Memset0(p)
	for _, b := range p {
		require.Equal(t, byte(0), b)
	}

	q := a.Allocate(16)
	require.Len(t, q, 16)
	p[0] = 1
	require.NotEqual(t, p[0], q[0], "allocations must not alias")
}

func TestAllocateExhaustionReturnsNil(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 32))
	require.NotNil(t, a.Allocate(32))
	require.Nil(t, a.Allocate(1))
}

func TestFreeRecyclesViaFirstFit(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 32))
	p := a.Allocate(16)
	q := a.Allocate(16)
	require.Nil(t, a.Allocate(1), "arena exhausted before any free")

	a.Free(p)
	r := a.Allocate(16)
	require.NotNil(t, r, "freed block should be reusable")
	_ = q
}

func TestDoubleFreePanics(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 32))
	p := a.Allocate(16)
	a.Free(p)
	require.Panics(t, func() { a.Free(p) })
}

func TestAddRefKeepsBlockAliveUntilLastFree(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 32))
	p := a.Allocate(16)
	require.Equal(t, 2, a.AddRef(p))

	a.Free(p)
	require.Nil(t, a.Allocate(32), "block must still be live after one of two frees")

	a.Free(p)
	require.NotNil(t, a.Allocate(16), "block must be recycled once the reference count reaches zero")
}

func TestNewOneAndNewArrayZeroTypedStorage(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 256))

	one := hostsim.NewOne[uint32](a)
	require.NotNil(t, one)
	require.Equal(t, uint32(0), *one)
	*one = 0xDEADBEEF

	arr := hostsim.NewArray[uint32](a, 4)
	require.Len(t, arr, 4)
	for _, v := range arr {
		require.Equal(t, uint32(0), v)
	}
	require.Equal(t, uint32(0xDEADBEEF), *one, "NewArray must not alias NewOne's block")
}

func TestNewArrayExhaustionReturnsNil(t *testing.T) {
	a := hostsim.NewAllocator(make([]byte, 4))
	require.Nil(t, hostsim.NewArray[uint64](a, 10))
}
