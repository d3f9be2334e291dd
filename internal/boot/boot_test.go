package boot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nehcdnr/gokernel/internal/bootcfg"
	"github.com/nehcdnr/gokernel/internal/boot"
)

func TestBootUniprocessorPIC8259(t *testing.T) {
	cfg := bootcfg.Defaults()
	k, err := boot.Boot(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Machine.Close() })

	require.NotNil(t, k.BSP)
	require.Empty(t, k.APs)
	require.Equal(t, 1, k.PIC.NumberOfProcessors())
	require.Contains(t, k.Console.Snapshot(), "bsp online")
}

func TestBootRejectsMultipleCPUsWithPIC8259(t *testing.T) {
	cfg := bootcfg.Defaults()
	cfg.CPUs = 2
	cfg.PIC = bootcfg.PIC8259
	_, err := boot.Boot(cfg)
	require.Error(t, err)
}

func TestBootBringsUpAPsUnderAPIC(t *testing.T) {
	cfg := bootcfg.Defaults()
	cfg.PIC = bootcfg.APIC
	cfg.CPUs = 3

	k, err := boot.Boot(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Machine.Close() })

	require.Len(t, k.APs, 2)
	for _, ap := range k.APs {
		require.NotNil(t, ap.Manager)
		require.NotNil(t, ap.LAPIC)
	}
	require.Equal(t, 3, k.PIC.NumberOfProcessors())
}
