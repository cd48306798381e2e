package kernel

import (
	"fmt"
	"sync"
)

// SwapDisk simulates the block-addressed swap device named in spec.md §6:
// page-sized transfers addressed by (track, sector, count), sectorsPerPage
// = pageSize / sectorSize.
type SwapDisk struct {
	mu sync.Mutex

	sectorSize int
	trackSize  int // sectors per track
	tracks     [][]byte
}

// NewSwapDisk creates a disk of numTracks tracks, each trackSize sectors of
// sectorSize bytes.
func NewSwapDisk(numTracks, trackSize, sectorSize int) *SwapDisk {
	d := &SwapDisk{
		sectorSize: sectorSize,
		trackSize:  trackSize,
		tracks:     make([][]byte, numTracks),
	}
	for i := range d.tracks {
		d.tracks[i] = make([]byte, trackSize*sectorSize)
	}
	return d
}

func (d *SwapDisk) SectorSize() int   { return d.sectorSize }
func (d *SwapDisk) TrackSectors() int { return d.trackSize }
func (d *SwapDisk) NumTracks() int    { return len(d.tracks) }

// ReadSectors copies count sectors starting at (track, sector) into buf.
func (d *SwapDisk) ReadSectors(track, sector, count int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if track < 0 || track >= len(d.tracks) {
		return fmt.Errorf("kernel: swap disk track %d out of range", track)
	}
	if len(buf) != count*d.sectorSize {
		return fmt.Errorf("kernel: swap disk read buffer size %d != %d sectors of %d bytes", len(buf), count, d.sectorSize)
	}
	off := sector * d.sectorSize
	if off+len(buf) > len(d.tracks[track]) {
		return fmt.Errorf("kernel: swap disk read crosses track boundary at track %d sector %d count %d", track, sector, count)
	}
	copy(buf, d.tracks[track][off:off+len(buf)])
	return nil
}

// WriteSectors copies buf into count sectors starting at (track, sector).
func (d *SwapDisk) WriteSectors(track, sector, count int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if track < 0 || track >= len(d.tracks) {
		return fmt.Errorf("kernel: swap disk track %d out of range", track)
	}
	if len(buf) != count*d.sectorSize {
		return fmt.Errorf("kernel: swap disk write buffer size %d != %d sectors of %d bytes", len(buf), count, d.sectorSize)
	}
	off := sector * d.sectorSize
	if off+len(buf) > len(d.tracks[track]) {
		return fmt.Errorf("kernel: swap disk write crosses track boundary at track %d sector %d count %d", track, sector, count)
	}
	copy(d.tracks[track][off:off+len(buf)], buf)
	return nil
}
