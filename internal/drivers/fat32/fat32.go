// Package fat32 is a supplemented driver (SPEC_FULL §3.1/§4.L): a minimal
// FAT-style file reader operating over an hostsim.Disk, sufficient to
// list and read files for the task.ELFFileService loader contract.
// Grounded on the on-disk layout original_source's file/ tree assumes (a
// BPB at sector 0, a FAT region, then a cluster-addressed data region),
// reduced here to files stored as one contiguous run of sectors and
// addressed by a flat root-directory table; no BPB is parsed and no FAT
// cluster chain is followed.
package fat32

import (
	"encoding/binary"
	"errors"

	"github.com/nehcdnr/gokernel/internal/arch"
	"github.com/nehcdnr/gokernel/internal/hostsim"
	"github.com/nehcdnr/gokernel/internal/syscall"
	"github.com/nehcdnr/gokernel/internal/task"
	"github.com/nehcdnr/gokernel/internal/trap"
)

// ServiceName is this driver's registered syscall service name.
const ServiceName = "fat32"

const (
	bytesPerSector    = hostsim.SectorSize
	rootDirSector     = 1
	dataRegionSector  = 2
	maxRootEntries    = 16
	nameFieldLen      = 16 // truncation/bounds match service.MaxNameLength
)

// rootEntry is one flattened root-directory entry: a name, the starting
// sector of its (single-extent) data, and its size in bytes.
type rootEntry struct {
	name        [nameFieldLen]byte
	startSector uint32
	size        uint32
}

const rootEntrySize = nameFieldLen + 4 + 4

// Format writes a root directory plus file data onto disk, as if a
// filesystem image had been flashed ahead of boot. files maps a name to
// its contents; each file is placed in its own contiguous run of
// sectors starting at dataRegionSector.
func Format(disk *hostsim.Disk, files map[string][]byte) error {
	root := make([]byte, bytesPerSector)
	next := uint32(dataRegionSector)
	i := 0
	for name, data := range files {
		if i >= maxRootEntries {
			return errors.New("fat32: too many files for this image")
		}
		if len(name) >= nameFieldLen {
			return errors.New("fat32: name too long")
		}
		entryOff := i * rootEntrySize
		copy(root[entryOff:], name)
		binary.LittleEndian.PutUint32(root[entryOff+nameFieldLen:], next)
		binary.LittleEndian.PutUint32(root[entryOff+nameFieldLen+4:], uint32(len(data)))

		sectorsNeeded := (len(data) + bytesPerSector - 1) / bytesPerSector
		if sectorsNeeded == 0 {
			sectorsNeeded = 1
		}
		for s := 0; s < sectorsNeeded; s++ {
			buf := make([]byte, bytesPerSector)
			start := s * bytesPerSector
			end := start + bytesPerSector
			if end > len(data) {
				end = len(data)
			}
			copy(buf, data[start:end])
			disk.WriteSector(int(next)+s, buf)
		}
		next += uint32(sectorsNeeded)
		i++
	}
	disk.WriteSector(rootDirSector, root)
	return nil
}

// Driver reads the root directory into memory at Start and serves
// ReadFile/list requests from it, the way a real driver task would cache
// the FAT after mount.
type Driver struct {
	entries []rootEntry
	disk    *hostsim.Disk
}

// Start mounts disk (reading its root directory) and registers the fat32
// syscall service on calls.
func Start(ops arch.Ops, tm *task.Manager, calls *syscall.Table, disk *hostsim.Disk) *Driver {
	d := &Driver{disk: disk}
	d.mount()
	_, _ = calls.RegisterSystemService(ops, ServiceName, d.syscallQuery, nil)
	return d
}

func (d *Driver) mount() {
	root := make([]byte, bytesPerSector)
	d.disk.ReadSector(rootDirSector, root)
	for i := 0; i < maxRootEntries; i++ {
		off := i * rootEntrySize
		var e rootEntry
		copy(e.name[:], root[off:off+nameFieldLen])
		if e.name[0] == 0 {
			continue
		}
		e.startSector = binary.LittleEndian.Uint32(root[off+nameFieldLen:])
		e.size = binary.LittleEndian.Uint32(root[off+nameFieldLen+4:])
		d.entries = append(d.entries, e)
	}
}

func trimName(b [nameFieldLen]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// ReadFile implements task.ELFFileService: walk the cached root
// directory, then read the file's contiguous sector run.
func (d *Driver) ReadFile(name string) ([]byte, bool) {
	for _, e := range d.entries {
		if trimName(e.name) != name {
			continue
		}
		sectorsNeeded := (int(e.size) + bytesPerSector - 1) / bytesPerSector
		if sectorsNeeded == 0 {
			sectorsNeeded = 1
		}
		data := make([]byte, 0, sectorsNeeded*bytesPerSector)
		buf := make([]byte, bytesPerSector)
		for s := 0; s < sectorsNeeded; s++ {
			d.disk.ReadSector(int(e.startSector)+s, buf)
			data = append(data, buf...)
		}
		return data[:e.size], true
	}
	return nil, false
}

// ListFiles returns every name present in the cached root directory.
func (d *Driver) ListFiles() []string {
	names := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		names = append(names, trimName(e.name))
	}
	return names
}

// syscallQuery is the registered SYSCALL handler: arg is a name->result
// channel-like callback wired by the caller (host simulation stands in
// for a real user-memory buffer and copy-in/copy-out); here it simply
// looks up arg as the requested filename and returns found/not-found in
// eax, matching §7's "return null/failure sentinel" policy for resource
// lookups.
func (d *Driver) syscallQuery(p *trap.Frame, arg any) {
	name, _ := arg.(string)
	if _, ok := d.ReadFile(name); !ok {
		syscall.Return(p, syscall.IOFailure)
		return
	}
	syscall.Return(p, 1)
}
