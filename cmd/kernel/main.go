// Command kernel is the host-simulated entry point: it loads a boot
// manifest (§2's ambient configuration layer), boots the kernel core via
// package boot, starts the four supplemented drivers (ps2, ahci and i8254x
// as kernel tasks; fat32 mounts without a task of its own), and then idles
// -- standing in for the real BSP's post-init idle loop, since there is
// no bootloader handing control to a freshly linked ELF here.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nehcdnr/gokernel/internal/bootcfg"
	"github.com/nehcdnr/gokernel/internal/boot"
	"github.com/nehcdnr/gokernel/internal/drivers/ahci"
	"github.com/nehcdnr/gokernel/internal/drivers/fat32"
	"github.com/nehcdnr/gokernel/internal/drivers/i8254x"
	"github.com/nehcdnr/gokernel/internal/drivers/ps2"
	"github.com/nehcdnr/gokernel/internal/hostsim"
)

func main() {
	cfgPath := flag.String("config", "", "path to a boot manifest (YAML); defaults are used if empty")
	flag.Parse()

	cfg := bootcfg.Defaults()
	if *cfgPath != "" {
		loaded, err := bootcfg.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	k, err := boot.Boot(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer k.Machine.Close()
	defer k.Log.Sync()

	disk := hostsim.NewDisk(64)
	_ = fat32.Format(disk, map[string][]byte{})
	fat32.Start(k.BSP.Ops, k.BSP.Manager, k.Calls, disk)
	ahci.Start(k.BSP.Ops, k.BSP.Manager, k.Calls, disk)
	ps2.Start(k.BSP.Ops, k.BSP.Manager, k.Calls, hostsim.NewKeyboard())
	i8254x.Start(k.BSP.Ops, k.BSP.Manager, k.Calls, hostsim.NewNic())

	k.Log.Info("boot complete", "cpus", cfg.CPUs)
	for {
		time.Sleep(time.Hour)
	}
}
