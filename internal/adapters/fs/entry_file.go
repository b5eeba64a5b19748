// Package fs reads timing entries from a file written by a browser harness,
// for example the output of JSON.stringify(performance.getEntries()).
package fs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/pkg/log"
)

// EntryFileConfig configures an EntryFile.
type EntryFileConfig struct {
	// Buffered makes Observe deliver the entries already in the file before
	// any appended later.
	Buffered bool
}

// EntryFile implements ports.TimingSource, ports.TimingClearer and
// ports.TimingObserver over a JSON array or NDJSON file of performance entries.
type EntryFile struct {
	path   string
	cfg    EntryFileConfig
	logger log.Logger

	mu sync.Mutex
	// cleared is the number of resource entries hidden by ClearResourceTimings.
	cleared int
}

// NewEntryFile creates an EntryFile. The file does not need to exist yet.
func NewEntryFile(path string, cfg EntryFileConfig, logger log.Logger) *EntryFile {
	return &EntryFile{path: path, cfg: cfg, logger: log.OrNoop(logger)}
}

// ReadAll parses every entry in the file, in file order. A missing file has
// no entries.
func (f *EntryFile) ReadAll() ([]domain.TimingEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseEntries(data)
}

// EntriesByType returns the entries of kind not yet cleared. Read errors are
// logged and yield no entries.
func (f *EntryFile) EntriesByType(kind domain.EntryKind) []domain.TimingEntry {
	all, err := f.ReadAll()
	if err != nil {
		f.logger.Debug("read entry file", log.String("path", f.path), log.Err(err))
		return nil
	}

	f.mu.Lock()
	cleared := f.cleared
	f.mu.Unlock()

	var out []domain.TimingEntry
	seenResources := 0
	for _, e := range all {
		if e.EntryType == domain.KindResource {
			seenResources++
			if seenResources <= cleared {
				continue
			}
		}
		if e.EntryType == kind {
			out = append(out, e)
		}
	}
	return out
}

// ClearResourceTimings hides the resource entries currently in the file from
// later reads. The file itself is not modified.
func (f *EntryFile) ClearResourceTimings() {
	all, err := f.ReadAll()
	if err != nil {
		return
	}
	n := len(domain.FilterByKind(all, domain.KindResource))

	f.mu.Lock()
	f.cleared = n
	f.mu.Unlock()
}

// Observe watches the file and delivers newly appended entries of kinds. A
// truncated or replaced file is read again from the start.
func (f *EntryFile) Observe(kinds []domain.EntryKind, onBatch func([]domain.TimingEntry)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	offset := 0
	if !f.cfg.Buffered {
		all, _ := f.ReadAll()
		offset = len(all)
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			watcher.Close()
		})
	}

	deliver := func() {
		all, err := f.ReadAll()
		if err != nil {
			f.logger.Debug("read entry file", log.String("path", f.path), log.Err(err))
			return
		}
		if len(all) < offset {
			offset = 0
		}
		batch := domain.FilterByKind(all[offset:], kinds...)
		offset = len(all)

		select {
		case <-done:
			return
		default:
		}
		if len(batch) > 0 {
			onBatch(batch)
		}
	}

	go func() {
		if f.cfg.Buffered {
			deliver()
		}
		name := filepath.Clean(f.path)
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				deliver()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Debug("entry file watcher", log.Err(err))
			}
		}
	}()

	return stop, nil
}

// ParseEntries decodes a JSON array of entries or NDJSON, one entry per line.
// In NDJSON a final line without a newline is kept only if it is valid JSON,
// since a writer may be midway through it; malformed lines are skipped. Entries without an entryType are resources.
func ParseEntries(data []byte) ([]domain.TimingEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []domain.TimingEntry
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode entry array: %w", err)
		}
	} else {
		complete := data
		if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
			complete = data[:i+1]
			if tail := bytes.TrimSpace(data[i+1:]); len(tail) > 0 && json.Valid(tail) {
				complete = data
			}
		} else if !json.Valid(trimmed) {
			return nil, nil
		}

		sc := bufio.NewScanner(bytes.NewReader(complete))
		sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var e domain.TimingEntry
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			entries = append(entries, e)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan entries: %w", err)
		}
	}

	for i := range entries {
		if entries[i].EntryType == "" {
			entries[i].EntryType = domain.KindResource
		}
	}
	return entries, nil
}
