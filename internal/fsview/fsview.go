// Package fsview implements the C10 in-memory filesystem view: a
// read-only directory built once from a block device at mount time. It
// is grounded on the teacher's kernel.go not for any specific function
// but for its top-level shape — a sequence of "read something, validate
// it, bring up the next layer" steps, each one a plain function that
// returns early on the first thing that doesn't check out, the same
// structure Mount follows here for superblock validation and file
// loading.
package fsview

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/ryan-jacobs1/oxidizedos/internal/blockdev"
	"github.com/ryan-jacobs1/oxidizedos/internal/sched"
)

const (
	magic      = "FSV1"
	nameField  = 16
	entrySize  = nameField + 4 + 4 // name, start LBA, length in sectors
	entryBase  = 16                // superblock header: 4-byte magic + 4-byte count + 8 reserved
)

// ErrBadSuperblock is returned when LBA 0 doesn't carry a recognizable
// superblock — wrong magic, or a directory entry that runs past the end
// of the sector.
var ErrBadSuperblock = errors.New("fsview: malformed superblock")

type dirEntry struct {
	name     string
	startLBA uint32
	sectors  uint32
}

// file is the read-only backing of one mounted file: its full contents,
// eagerly loaded off the block device at mount time.
type file struct {
	data []byte
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("fsview: negative offset")
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// FSView is the read-only mounted directory: a fixed name-to-file map
// built once by Mount and never mutated afterward.
type FSView struct {
	files map[string]*file
}

// BlockReader is the read side of a block device. blockdev.Device
// satisfies it; Mount depends on the interface rather than the concrete
// type so tests can stand in a fake device without driving the real
// ATA/PIO protocol through hal/sim.
type BlockReader interface {
	ReadSector(self *sched.TCB, lba uint32) ([blockdev.SectorSize]byte, error)
}

// Open returns a reader over name's full contents, or false if no such
// file was present at mount time. There is no create/write/delete path —
// the non-goal this package implements is a read view, nothing else.
func (v *FSView) Open(name string) (io.ReaderAt, bool) {
	f, ok := v.files[name]
	return f, ok
}

func parseSuperblock(sector [blockdev.SectorSize]byte) ([]dirEntry, error) {
	if string(sector[:len(magic)]) != magic {
		return nil, ErrBadSuperblock
	}
	count := binary.LittleEndian.Uint32(sector[4:8])

	entries := make([]dirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		off := entryBase + int(i)*entrySize
		if off+entrySize > len(sector) {
			return nil, ErrBadSuperblock
		}
		rawName := sector[off : off+nameField]
		name := string(bytes.TrimRight(rawName, "\x00"))
		start := binary.LittleEndian.Uint32(sector[off+nameField : off+nameField+4])
		length := binary.LittleEndian.Uint32(sector[off+nameField+4 : off+entrySize])
		entries = append(entries, dirEntry{name: name, startLBA: start, sectors: length})
	}
	return entries, nil
}

// Mount reads the fixed superblock at LBA 0 off dev and eagerly loads
// every listed file's sectors into memory, returning a read-only view.
// self is the calling thread's own TCB: every block-device read Mount
// performs suspends through self exactly like any other C9 caller, so
// mounting ties up only the thread that called Mount, never the whole
// system.
func Mount(self *sched.TCB, dev BlockReader) (*FSView, error) {
	sb, err := dev.ReadSector(self, 0)
	if err != nil {
		return nil, err
	}
	entries, err := parseSuperblock(sb)
	if err != nil {
		return nil, err
	}

	v := &FSView{files: make(map[string]*file, len(entries))}
	for _, e := range entries {
		data := make([]byte, 0, int(e.sectors)*blockdev.SectorSize)
		for i := uint32(0); i < e.sectors; i++ {
			sector, err := dev.ReadSector(self, e.startLBA+i)
			if err != nil {
				return nil, err
			}
			data = append(data, sector[:]...)
		}
		v.files[e.name] = &file{data: data}
	}
	return v, nil
}
