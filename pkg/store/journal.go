package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
)

// JournalBackend persists collection snapshots to local disk as a compacted
// snapshot file plus an append-only journal of snappy-compressed entries.
// Every Persist appends one entry; when the journal outgrows the compaction
// threshold the newest entry is promoted to the snapshot file and the journal
// truncated. Load replays the journal and returns the last entry with a valid
// checksum, so a torn tail write falls back to the previous good state.
type JournalBackend struct {
	mu         sync.Mutex
	dir        string
	name       string
	journal    *os.File
	writer     *bufio.Writer
	currentLSN uint64
	threshold  int64

	// Statistics
	totalWrites       uint64
	bytesUncompressed uint64
	bytesCompressed   uint64
}

const (
	journalHeaderSize = 8 + 4 + 4 // LSN + payload length + CRC32
	// DefaultCompactionThreshold is the journal size that triggers compaction
	DefaultCompactionThreshold = 4 << 20
)

// NewJournalBackend opens (or creates) the journal for one collection under dir
func NewJournalBackend(dir, name string) (*JournalBackend, error) {
	return NewJournalBackendWithThreshold(dir, name, DefaultCompactionThreshold)
}

// NewJournalBackendWithThreshold opens a journal with a custom compaction threshold
func NewJournalBackendWithThreshold(dir, name string, threshold int64) (*JournalBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	b := &JournalBackend{
		dir:       dir,
		name:      name,
		threshold: threshold,
	}

	file, err := os.OpenFile(b.journalPath(), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	b.journal = file
	b.writer = bufio.NewWriter(file)

	// Recover the LSN from existing entries
	if _, lsn, err := b.replay(); err == nil {
		b.currentLSN = lsn
	}
	return b, nil
}

func (b *JournalBackend) journalPath() string {
	return filepath.Join(b.dir, b.name+".journal")
}

func (b *JournalBackend) snapshotPath() string {
	return filepath.Join(b.dir, b.name+".snapshot")
}

// Persist appends the snapshot as one journal entry, compacting if needed
func (b *JournalBackend) Persist(snapshot []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.currentLSN++
	compressed := snappy.Encode(nil, snapshot)

	header := make([]byte, journalHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], b.currentLSN)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[12:16], crc32.ChecksumIEEE(compressed))

	if _, err := b.writer.Write(header); err != nil {
		return fmt.Errorf("failed to write journal header: %w", err)
	}
	if _, err := b.writer.Write(compressed); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	if err := b.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	if err := b.journal.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	b.totalWrites++
	b.bytesUncompressed += uint64(len(snapshot))
	b.bytesCompressed += uint64(len(compressed))

	info, err := b.journal.Stat()
	if err == nil && info.Size() > b.threshold {
		if err := b.compact(compressed); err != nil {
			return fmt.Errorf("failed to compact journal: %w", err)
		}
	}
	return nil
}

// compact promotes the newest entry to the snapshot file and truncates the
// journal. Called with the lock held.
func (b *JournalBackend) compact(latestCompressed []byte) error {
	tmp := b.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, latestCompressed, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, b.snapshotPath()); err != nil {
		return err
	}

	if err := b.journal.Truncate(0); err != nil {
		return err
	}
	if _, err := b.journal.Seek(0, io.SeekStart); err != nil {
		return err
	}
	b.writer.Reset(b.journal)
	return nil
}

// Load returns the most recent valid snapshot: the last good journal entry,
// or the snapshot file when the journal is empty
func (b *JournalBackend) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	latest, _, err := b.replay()
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return latest, nil
	}

	compressed, err := os.ReadFile(b.snapshotPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snapshot, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	return snapshot, nil
}

// replay scans the journal and returns the last entry with a valid checksum
// plus its LSN. A corrupt or truncated tail ends the scan without error.
func (b *JournalBackend) replay() ([]byte, uint64, error) {
	file, err := os.Open(b.journalPath())
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open journal for replay: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var latest []byte
	var lastLSN uint64

	for {
		header := make([]byte, journalHeaderSize)
		if _, err := io.ReadFull(reader, header); err != nil {
			break // clean EOF or torn header, either way stop
		}
		lsn := binary.LittleEndian.Uint64(header[0:8])
		length := binary.LittleEndian.Uint32(header[8:12])
		checksum := binary.LittleEndian.Uint32(header[12:16])

		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			break
		}
		if crc32.ChecksumIEEE(payload) != checksum {
			break
		}

		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			break
		}
		latest = decoded
		lastLSN = lsn
	}
	return latest, lastLSN, nil
}

// Close flushes and closes the journal file
func (b *JournalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writer.Flush(); err != nil {
		return err
	}
	return b.journal.Close()
}

// CompressionRatio reports the journal's achieved compression, for diagnostics
func (b *JournalBackend) CompressionRatio() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bytesUncompressed == 0 {
		return 1.0
	}
	return float64(b.bytesCompressed) / float64(b.bytesUncompressed)
}
