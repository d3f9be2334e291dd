package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/service"
)

func newCPU(t *testing.T) *hostsim.CPU {
	t.Helper()
	m, err := hostsim.NewMachine(4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m.NewCPU(0)
}

func TestRegisterAndQuery(t *testing.T) {
	ops := newCPU(t)
	r := service.NewRegistry(4)

	require.NoError(t, r.Register(ops, "ahci0", 17))
	slot, ok := r.Query(ops, "ahci0")
	require.True(t, ok)
	require.Equal(t, 17, slot)

	_, ok = r.Query(ops, "missing")
	require.False(t, ok)
}

func TestRegisterRejectsInvalidNames(t *testing.T) {
	ops := newCPU(t)
	r := service.NewRegistry(4)

	require.ErrorIs(t, r.Register(ops, "", 0), service.ErrInvalidName)
	require.ErrorIs(t, r.Register(ops, strings.Repeat("x", service.MaxNameLength), 0), service.ErrInvalidName)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	ops := newCPU(t)
	r := service.NewRegistry(4)

	require.NoError(t, r.Register(ops, "fat32", 18))
	require.ErrorIs(t, r.Register(ops, "fat32", 19), service.ErrServiceExisting)
}

func TestRegisterRejectsOverCapacity(t *testing.T) {
	ops := newCPU(t)
	r := service.NewRegistry(2)

	require.NoError(t, r.Register(ops, "a", 0))
	require.NoError(t, r.Register(ops, "b", 1))
	require.ErrorIs(t, r.Register(ops, "c", 2), service.ErrTooManyServices)
}
