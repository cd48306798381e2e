// Package swapstore is the Swap Store of spec.md §4.2: an append-only
// swap-block allocator over a block-addressed disk, keyed by (owner pid,
// page number) only insofar as the caller keeps that mapping in the PTE's
// diskBlock field — the store itself just hands out and reads/writes
// blocks.
package swapstore

import (
	"fmt"
	"sync"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/pagetable"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
)

// Store allocates and transfers page-sized blocks on a kernel.SwapDisk.
type Store struct {
	mu sync.Mutex

	disk          *kernel.SwapDisk
	pageSize      int
	sectorsPerPg  int
	diskBlocks    int
	nextBlock     int
}

// New wraps disk for page-sized transfers. diskBlocks is the disk's total
// capacity in pages (disk size / page size).
func New(disk *kernel.SwapDisk, pageSize int) *Store {
	sectorsPerPg := pageSize / disk.SectorSize()
	totalSectors := disk.NumTracks() * disk.TrackSectors()
	return &Store{
		disk:         disk,
		pageSize:     pageSize,
		sectorsPerPg: sectorsPerPg,
		diskBlocks:   totalSectors / sectorsPerPg,
	}
}

// DiskBlocks returns the disk's total capacity in page-sized blocks.
func (s *Store) DiskBlocks() int { return s.diskBlocks }

// Allocate hands out the next swap block, strictly append-only with no
// reclamation (spec.md §4.2's rationale: a block's lifetime is bounded by
// process quit, but slots are never reused). Returns vmerr.ErrSwapFull
// once the disk is exhausted.
func (s *Store) Allocate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextBlock >= s.diskBlocks {
		return pagetable.Sentinel, vmerr.ErrSwapFull
	}
	b := s.nextBlock
	s.nextBlock++
	return b, nil
}

// geometry translates a block index to (track, sector, count), per
// spec.md §6: track = (b*sectorsPerPage) / trackSize, sector =
// (b*sectorsPerPage) % trackSize — the spec's explicit correction of the
// original source's swapped-operator bug (spec.md §9).
func (s *Store) geometry(block int) (track, sector, count int) {
	trackSize := s.disk.TrackSectors()
	startSector := block * s.sectorsPerPg
	return startSector / trackSize, startSector % trackSize, s.sectorsPerPg
}

// Write stores one page-sized buf at block.
func (s *Store) Write(block int, buf []byte) error {
	if len(buf) != s.pageSize {
		return fmt.Errorf("swapstore: write buffer is %d bytes, want %d", len(buf), s.pageSize)
	}
	track, sector, count := s.geometry(block)
	return s.disk.WriteSectors(track, sector, count, buf)
}

// Read loads one page-sized block into buf.
func (s *Store) Read(block int, buf []byte) error {
	if len(buf) != s.pageSize {
		return fmt.Errorf("swapstore: read buffer is %d bytes, want %d", len(buf), s.pageSize)
	}
	track, sector, count := s.geometry(block)
	return s.disk.ReadSectors(track, sector, count, buf)
}
