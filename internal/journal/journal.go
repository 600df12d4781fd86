// Package journal keeps a tamper-evident JSONL record of plugin lifecycle
// events: enables, disables, reloads, command use and update results.
package journal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codelanx/plugintemplate/internal/config"
	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("journal")

// FileName is the journal file inside the data folder.
const FileName = "journal.jsonl"

const genesis = "genesis"

// Event types.
const (
	EventEnabled      = "plugin_enabled"
	EventDisabled     = "plugin_disabled"
	EventConfigReload = "config_reloaded"
	EventCommand      = "command_executed"
	EventUpdateResult = "update_result"
	EventUpdateStaged = "update_staged"
	EventRotated      = "journal_rotated"
)

// syncEvents are fsynced after writing.
var syncEvents = map[string]bool{
	EventEnabled:      true,
	EventDisabled:     true,
	EventUpdateStaged: true,
}

var ErrChainBroken = errors.New("journal: hash chain broken")

// Entry is one journal record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Actor     string         `json:"actor,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prevHash"`
	EntryHash string         `json:"entryHash"`
}

// Journal appends entries linked by a SHA-256 chain. After rotation the new
// file starts with an EventRotated entry linking to the last entry of the
// previous file. A nil *Journal discards everything.
type Journal struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64
	maxBackups int
	written    int64
	prevHash   string
	dropped    atomic.Int64
	now        func() time.Time
}

// Open opens (or creates) the journal in dataDir. The chain continues from
// the last entry already in the file.
func Open(dataDir string, cfg config.JournalConfig) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 5
	}
	j := &Journal{
		path:       filepath.Join(dataDir, FileName),
		maxSize:    int64(maxSize) * 1024 * 1024,
		maxBackups: max(cfg.MaxBackups, 0),
		prevHash:   genesis,
		now:        time.Now,
	}

	if last, err := lastHash(j.path); err == nil && last != "" {
		j.prevHash = last
	}
	if err := j.openFile(); err != nil {
		return nil, err
	}

	log.Debug("journal opened", logging.KeyPath, j.path)
	return j, nil
}

func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Record writes one entry. The chain only advances after a successful write,
// so a failed write is re-linked by the next entry.
func (j *Journal) Record(event, actor string, details map[string]any) {
	if j == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := Entry{
		Timestamp: j.now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		Actor:     actor,
		Details:   details,
		PrevHash:  j.prevHash,
	}
	data, err := seal(&entry)
	if err != nil {
		log.Error("journal entry not encoded", "event", event, logging.KeyError, err)
		j.dropped.Add(1)
		return
	}

	if j.written+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			log.Error("journal rotation failed", logging.KeyError, err)
			j.dropped.Add(1)
			return
		}
		// rotate advanced the chain with its own entry
		entry.PrevHash = j.prevHash
		if data, err = seal(&entry); err != nil {
			j.dropped.Add(1)
			return
		}
	}

	n, err := j.file.Write(data)
	if err != nil {
		log.Error("journal write failed", "event", event, logging.KeyError, err)
		j.dropped.Add(1)
		return
	}
	j.written += int64(n)
	j.prevHash = entry.EntryHash

	if syncEvents[event] {
		if err := j.file.Sync(); err != nil {
			log.Warn("journal fsync failed", "event", event, logging.KeyError, err)
		}
	}
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Dropped counts entries that could not be written, or -1 for a nil journal.
func (j *Journal) Dropped() int64 {
	if j == nil {
		return -1
	}
	return j.dropped.Load()
}

// seal fills in EntryHash and returns the encoded line.
func seal(e *Entry) ([]byte, error) {
	h, err := hashEntry(*e)
	if err != nil {
		return nil, err
	}
	e.EntryHash = h
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// hashEntry length-prefixes every field so no two field layouts collide.
func hashEntry(e Entry) (string, error) {
	h := sha256.New()
	for _, field := range []string{e.Timestamp, e.Event, e.Actor, e.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(b))
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (j *Journal) openFile() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	j.file = f
	j.written = info.Size()
	return nil
}

func (j *Journal) rotate() error {
	if j.file != nil {
		j.file.Close()
	}

	for i := j.maxBackups; i >= 2; i-- {
		src, dst := j.backupName(i-1), j.backupName(i)
		if i == j.maxBackups {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Warn("removing oldest journal failed", logging.KeyPath, dst, logging.KeyError, err)
			}
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			log.Warn("shifting journal backup failed", "src", src, "dst", dst, logging.KeyError, err)
		}
	}
	if err := os.Rename(j.path, j.backupName(1)); err != nil && !os.IsNotExist(err) {
		log.Warn("renaming journal failed", logging.KeyError, err)
	}

	if err := j.openFile(); err != nil {
		return err
	}

	sentinel := Entry{
		Timestamp: j.now().UTC().Format(time.RFC3339Nano),
		Event:     EventRotated,
		PrevHash:  j.prevHash,
		Details:   map[string]any{"previousFile": filepath.Base(j.backupName(1))},
	}
	data, err := seal(&sentinel)
	if err != nil {
		return err
	}
	n, err := j.file.Write(data)
	if err != nil {
		return err
	}
	j.written += int64(n)
	j.prevHash = sentinel.EntryHash
	return nil
}

func (j *Journal) backupName(index int) string {
	if index == 0 {
		return j.path
	}
	return fmt.Sprintf("%s.%d", j.path, index)
}

// Read returns every entry in the file at path.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// Verify checks that every entry in path hashes correctly and links to its
// predecessor. The first entry may link to anything when it is a rotation
// entry; otherwise it must start the chain.
func Verify(path string) error {
	entries, err := Read(path)
	if err != nil {
		return err
	}
	prev := ""
	for i, e := range entries {
		want, err := hashEntry(e)
		if err != nil {
			return err
		}
		if want != e.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, i+1)
		}
		switch {
		case i == 0 && e.Event == EventRotated:
		case i == 0 && e.PrevHash != genesis:
			return fmt.Errorf("%w: first entry does not start the chain", ErrChainBroken)
		case i > 0 && e.PrevHash != prev:
			return fmt.Errorf("%w: entry %d does not link to entry %d", ErrChainBroken, i+1, i)
		}
		prev = e.EntryHash
	}
	return nil
}

func lastHash(path string) (string, error) {
	entries, err := Read(path)
	if err != nil || len(entries) == 0 {
		return "", err
	}
	return entries[len(entries)-1].EntryHash, nil
}
