package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SegmentMaxBytesDefault is SEGMENT_MAX (spec §4.7's default 128 MiB) — the
// size at which a new blk<NNNNN>.dat file is started.
const SegmentMaxBytesDefault = 128 * 1024 * 1024

// frameMagic is the literal 4-byte magic spec §6's persistence layout
// calls for ahead of every block's 4-byte length prefix: "each block
// prefixed by a 4-byte magic and 4-byte length".
var frameMagic = [4]byte{0x4c, 0x4f, 0x47, 0x49} // "LOGI"

const frameHeaderSize = 4 + 4 // magic + length

// Location identifies exactly where a block's bytes live on disk, the
// value the index's block_hash bucket stores.
type Location struct {
	Segment uint32
	Offset  int64
	Length  uint32
}

// segmentPath returns the filename for a segment, e.g. "blk00007.dat" —
// spec §4.7's literal naming.
func segmentPath(dir string, segment uint32) string {
	return filepath.Join(dir, fmt.Sprintf("blk%05d.dat", segment))
}

// Segments manages the append-only block body files: one open file handle
// for writing the current (highest-numbered) segment, rotating to a new
// file once SegmentMaxBytes is reached. Reading is always done by
// re-opening the target segment by number, since segments are written
// once and never mutated in place — adapted from the teacher's single
// O_APPEND dbFile in foundation/blockchain/storage/storage.go, generalized
// to multiple capped segment files.
type Segments struct {
	dir             string
	segmentMaxBytes int64

	mu      sync.Mutex
	current uint32
	file    *os.File
	size    int64
}

// Open opens (or creates) the segment set rooted at dir, resuming
// appends onto segment currentSegment.
func Open(dir string, currentSegment uint32, segmentMaxBytes int64) (*Segments, error) {
	if segmentMaxBytes <= 0 {
		segmentMaxBytes = SegmentMaxBytesDefault
	}
	s := &Segments{dir: dir, segmentMaxBytes: segmentMaxBytes, current: currentSegment}
	if err := s.openCurrentForAppend(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Segments) openCurrentForAppend() error {
	path := segmentPath(s.dir, s.current)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("storage: open segment %d: %w", s.current, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// Close releases the current segment's file handle.
func (s *Segments) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// CurrentSegment reports which segment number is open for appends, so the
// manifest can record it across restarts.
func (s *Segments) CurrentSegment() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Append writes blockBytes framed as spec §6's persistence layout calls
// for — a 4-byte magic, then a 4-byte big-endian length, then the payload
// — to the current segment, rotating to a new segment first if the write
// would exceed segmentMaxBytes. Returns the Location the index should
// record for this block; Location.Offset points at the frame header, not
// the payload, so Read/ReplaySegment can validate the magic on every read.
func (s *Segments) Append(blockBytes []byte) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frameLen := int64(frameHeaderSize + len(blockBytes))
	if s.size > 0 && s.size+frameLen > s.segmentMaxBytes {
		if err := s.rotateLocked(); err != nil {
			return Location{}, err
		}
	}

	var header [frameHeaderSize]byte
	copy(header[0:4], frameMagic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(len(blockBytes)))

	offset := s.size
	if _, err := s.file.Write(header[:]); err != nil {
		return Location{}, fmt.Errorf("storage: write segment frame header: %w", err)
	}
	if _, err := s.file.Write(blockBytes); err != nil {
		return Location{}, fmt.Errorf("storage: write segment body: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return Location{}, fmt.Errorf("storage: fsync segment: %w", err)
	}
	s.size += frameLen

	return Location{Segment: s.current, Offset: offset, Length: uint32(len(blockBytes))}, nil
}

func (s *Segments) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("storage: close segment %d: %w", s.current, err)
	}
	s.current++
	return s.openCurrentForAppend()
}

// Read returns the raw block bytes at loc, validating the frame's magic
// first.
func (s *Segments) Read(loc Location) ([]byte, error) {
	path := segmentPath(s.dir, loc.Segment)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open segment %d: %w", loc.Segment, err)
	}
	defer f.Close()

	var header [frameHeaderSize]byte
	if _, err := f.ReadAt(header[:], loc.Offset); err != nil {
		return nil, fmt.Errorf("storage: read segment %d frame header at %d: %w", loc.Segment, loc.Offset, err)
	}
	var magic [4]byte
	copy(magic[:], header[0:4])
	if magic != frameMagic {
		return nil, fmt.Errorf("storage: bad frame magic at segment %d offset %d", loc.Segment, loc.Offset)
	}

	buf := make([]byte, loc.Length)
	if _, err := f.ReadAt(buf, loc.Offset+frameHeaderSize); err != nil {
		return nil, fmt.Errorf("storage: read segment %d at %d: %w", loc.Segment, loc.Offset, err)
	}
	return buf, nil
}

// ReplaySegment reads every frame in segment from start, in order,
// invoking fn with each block's raw bytes and its Location. Used on
// startup when the manifest is inconsistent and the index must be
// rebuilt, mirroring ReadAllBlocks's bufio.Scanner replay loop adapted to
// length-prefixed binary frames instead of newline-delimited JSON.
func ReplaySegment(dir string, segment uint32, fn func(loc Location, blockBytes []byte) error) error {
	path := segmentPath(dir, segment)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: open segment %d: %w", segment, err)
	}
	defer f.Close()

	var offset int64
	for {
		var header [frameHeaderSize]byte
		n, err := f.ReadAt(header[:], offset)
		if n < frameHeaderSize {
			break
		}
		if err != nil && n != frameHeaderSize {
			return fmt.Errorf("storage: read segment %d frame header: %w", segment, err)
		}

		var magic [4]byte
		copy(magic[:], header[0:4])
		if magic != frameMagic {
			return fmt.Errorf("storage: bad frame magic in segment %d at offset %d", segment, offset)
		}

		length := binary.BigEndian.Uint32(header[4:8])
		body := make([]byte, length)
		if _, err := f.ReadAt(body, offset+frameHeaderSize); err != nil {
			return fmt.Errorf("storage: read segment %d frame body: %w", segment, err)
		}

		loc := Location{Segment: segment, Offset: offset, Length: length}
		if err := fn(loc, body); err != nil {
			return err
		}
		offset += frameHeaderSize + int64(length)
	}
	return nil
}
