package journal

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/codelanx/plugintemplate/internal/config"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir(), config.JournalConfig{Enabled: true, MaxSizeMB: 5, MaxBackups: 3})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return entries
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.Record(EventEnabled, "", nil)
	if err := j.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if j.Dropped() != -1 {
		t.Fatalf("nil Dropped = %d, want -1", j.Dropped())
	}
	if j.Path() != "" {
		t.Fatal("nil Path should be empty")
	}
}

func TestRecordWritesChain(t *testing.T) {
	j := newTestJournal(t)
	j.Record(EventEnabled, "", map[string]any{"version": "1.0"})
	j.Record(EventCommand, "CONSOLE", map[string]any{"command": "update"})
	j.Record(EventUpdateResult, "", map[string]any{"result": "no-update"})
	j.Close()

	entries := readEntries(t, j.Path())
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].PrevHash != genesis {
		t.Fatalf("entry[0].PrevHash = %q, want genesis", entries[0].PrevHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].EntryHash {
			t.Fatalf("entry[%d] does not link to entry[%d]", i, i-1)
		}
	}
	if entries[1].Actor != "CONSOLE" {
		t.Fatalf("actor = %q", entries[1].Actor)
	}
	if err := Verify(j.Path()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if j.Dropped() != 0 {
		t.Fatalf("Dropped = %d", j.Dropped())
	}
}

func TestReopenContinuesChain(t *testing.T) {
	dir := t.TempDir()
	cfg := config.JournalConfig{MaxSizeMB: 5, MaxBackups: 1}

	j, err := Open(dir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	j.Record(EventEnabled, "", nil)
	j.Close()

	j, err = Open(dir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	j.Record(EventDisabled, "", nil)
	j.Close()

	if err := Verify(j.Path()); err != nil {
		t.Fatalf("Verify after reopen: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	j := newTestJournal(t)
	j.Record(EventEnabled, "", nil)
	j.Record(EventUpdateResult, "", map[string]any{"result": "updated"})
	j.Close()

	data, err := os.ReadFile(j.Path())
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"updated"`, `"no-update"`, 1)
	if err := os.WriteFile(j.Path(), []byte(tampered), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Verify(j.Path()); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("Verify = %v, want ErrChainBroken", err)
	}
}

func TestVerifyDetectsRemovedEntry(t *testing.T) {
	j := newTestJournal(t)
	for i := 0; i < 3; i++ {
		j.Record(EventCommand, "CONSOLE", map[string]any{"i": i})
	}
	j.Close()

	entries := readEntries(t, j.Path())
	var lines []string
	for i, e := range entries {
		if i == 1 {
			continue
		}
		b, _ := json.Marshal(e)
		lines = append(lines, string(b))
	}
	if err := os.WriteFile(j.Path(), []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Verify(j.Path()); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("Verify = %v, want ErrChainBroken", err)
	}
}

func TestRotationLinksAcrossFiles(t *testing.T) {
	j := newTestJournal(t)
	j.maxSize = 200

	for i := 0; i < 10; i++ {
		j.Record(EventCommand, "CONSOLE", map[string]any{"i": i})
	}
	j.Close()

	entries := readEntries(t, j.Path())
	if len(entries) == 0 {
		t.Fatal("current journal is empty after rotation")
	}
	if entries[0].Event != EventRotated {
		t.Fatalf("first entry = %q, want %q", entries[0].Event, EventRotated)
	}
	if prev, _ := entries[0].Details["previousFile"].(string); prev != FileName+".1" {
		t.Fatalf("previousFile = %q", prev)
	}

	backup := readEntries(t, j.Path()+".1")
	if len(backup) == 0 {
		t.Fatal("backup journal is empty")
	}
	if entries[0].PrevHash != backup[len(backup)-1].EntryHash {
		t.Fatal("rotation entry does not link to the last entry of the backup")
	}
	if err := Verify(j.Path()); err != nil {
		t.Fatalf("Verify current: %v", err)
	}
	if _, err := os.Stat(j.Path() + ".4"); !os.IsNotExist(err) {
		t.Fatal("more backups kept than configured")
	}
}

func TestSyncEvents(t *testing.T) {
	for _, e := range []string{EventEnabled, EventDisabled, EventUpdateStaged} {
		if !syncEvents[e] {
			t.Errorf("%q should be synced", e)
		}
	}
	for _, e := range []string{EventCommand, EventUpdateResult, EventConfigReload} {
		if syncEvents[e] {
			t.Errorf("%q should not be synced", e)
		}
	}
}

func TestDroppedOnWriteFailure(t *testing.T) {
	j := newTestJournal(t)

	j.file.Close()
	f, err := os.Open(j.Path())
	if err != nil {
		t.Fatal(err)
	}
	j.file = f

	j.Record(EventCommand, "CONSOLE", nil)
	if got := j.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d, want 1", got)
	}
}

func TestTimestampsUseClock(t *testing.T) {
	j := newTestJournal(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }
	j.Record(EventConfigReload, "", nil)
	j.Close()

	entries := readEntries(t, j.Path())
	if entries[0].Timestamp != fixed.Format(time.RFC3339Nano) {
		t.Fatalf("timestamp = %q", entries[0].Timestamp)
	}
}
