// Package snapshot keeps the most recent successful metrics result so a failed
// or cancelled computation never replaces it. The snapshot can be persisted to
// a snappy-compressed file and reloaded on start.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

var (
	// ErrCorrupt is returned when a snapshot file fails its checksum or framing
	ErrCorrupt = errors.New("snapshot file corrupt")
	// ErrPersist wraps failures writing the snapshot file
	ErrPersist = errors.New("snapshot persist failed")
)

var fileMagic = [4]byte{'G', 'M', 'S', '1'}

// Snapshot is one stored result
type Snapshot struct {
	Seq         uint64         `json:"seq"`
	RequestID   string         `json:"requestId"`
	CompletedAt time.Time      `json:"completedAt"`
	Result      *engine.Result `json:"result"`
}

// Store holds the latest snapshot in memory and, when a path is set, on disk
type Store struct {
	mu     sync.RWMutex
	latest *Snapshot
	path   string
}

// NewStore creates a store. With a non-empty path an existing snapshot file is
// loaded; a missing file is not an error.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}

	snap, err := readFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	s.latest = snap
	return s, nil
}

// Save records result as the latest snapshot. The in-memory snapshot is
// replaced even if persisting it fails; that failure is returned wrapped in
// ErrPersist.
func (s *Store) Save(requestID string, result *engine.Result) (*Snapshot, error) {
	if result == nil {
		return nil, errors.New("snapshot: nil result")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var seq uint64 = 1
	if s.latest != nil {
		seq = s.latest.Seq + 1
	}
	snap := &Snapshot{
		Seq:         seq,
		RequestID:   requestID,
		CompletedAt: time.Now().UTC(),
		Result:      result,
	}
	s.latest = snap

	if s.path != "" {
		if err := writeFile(s.path, snap); err != nil {
			return snap, fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	return snap, nil
}

// Latest returns the most recent snapshot
func (s *Store) Latest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// Path returns the backing file path, empty for memory-only stores
func (s *Store) Path() string {
	return s.path
}

// File format: [Magic:4][DataLen:4][Data:N][Checksum:4], Data = snappy(JSON)

func writeFile(path string, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	data := snappy.Encode(nil, raw)

	var buf bytes.Buffer
	buf.Write(fileMagic[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(data))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Write then rename so readers never see a torn file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil || magic != fileMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}

	var dataLen uint32
	if err := binary.Read(f, binary.BigEndian, &dataLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var checksum uint32
	if err := binary.Read(f, binary.BigEndian, &checksum); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if crc32.ChecksumIEEE(data) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &snap, nil
}
