// Package bootcfg loads the boot-time parameters a real BIOS/bootloader
// would otherwise hand the kernel (simulated CPU count, simulated
// physical memory size, timer frequency override, which PIC variant to
// program), per SPEC_FULL §2's ambient configuration layer. Parsed with
// gopkg.in/yaml.v3, the same dependency tamago, gvisor, and S370 carry in
// their own manifests.
package bootcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PICKind selects which §4.D controller variant Boot programs.
type PICKind string

const (
	PIC8259 PICKind = "pic8259"
	APIC    PICKind = "apic"
)

// Config is the boot-time manifest. Fields a manifest omits keep Defaults'
// values in Load; a field written explicitly, even as zero, overrides them.
type Config struct {
	CPUs            int     `yaml:"cpus"`
	PhysicalMemory  int     `yaml:"physical_memory_bytes"`
	TimerFrequency  int     `yaml:"timer_frequency_hz"`
	PIC             PICKind `yaml:"pic"`
	ConsoleCapacity int     `yaml:"console_capacity_bytes"`
}

// Defaults returns the configuration a BSP boots with when no manifest is
// supplied: one CPU, the legacy 8259, and the fixed 100Hz tick (§6).
func Defaults() Config {
	return Config{
		CPUs:            1,
		PhysicalMemory:  16 << 20,
		TimerFrequency:  100,
		PIC:             PIC8259,
		ConsoleCapacity: 64 << 10,
	}
}

// Load reads and validates a YAML manifest from path, filling in any
// field the manifest omits from Defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("bootcfg: %w", err)
	}
	return Parse(data)
}

// Parse is Load without touching the filesystem, used by tests and by
// Load itself.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("bootcfg: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.CPUs < 1 {
		return fmt.Errorf("bootcfg: cpus must be >= 1, got %d", c.CPUs)
	}
	if c.PIC != PIC8259 && c.PIC != APIC {
		return fmt.Errorf("bootcfg: unknown pic variant %q", c.PIC)
	}
	if c.PIC == PIC8259 && c.CPUs > 1 {
		return fmt.Errorf("bootcfg: pic8259 supports only one processor, got cpus=%d", c.CPUs)
	}
	if c.TimerFrequency < 1 {
		return fmt.Errorf("bootcfg: timer_frequency_hz must be >= 1, got %d", c.TimerFrequency)
	}
	return nil
}
