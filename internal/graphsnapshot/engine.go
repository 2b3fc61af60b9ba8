package graphsnapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var versionDirPattern = regexp.MustCompile(`^snap_v(\d+)$`)

// Engine maintains a series of versioned on-disk databases and presents a
// single current version to the query path. The in-memory version
// counter is rehydrated from the highest extant directory on startup.
type Engine struct {
	mu sync.RWMutex

	baseDir string
	version int

	currentDB  *bbolt.DB
	currentVer int
	promotedAt time.Time
	previousDB *bbolt.DB
	previousVer int

	staging *Writer
}

// Open rehydrates an Engine from baseDir, opening the highest-numbered
// `snap_v<N>` directory found as the current version, and the next one
// below it (if present) as previous. baseDir is created if missing.
func Open(baseDir string) (*Engine, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot base dir: %w", err)
	}
	versions, err := existingVersions(baseDir)
	if err != nil {
		return nil, err
	}
	e := &Engine{baseDir: baseDir}
	if len(versions) == 0 {
		return e, nil
	}
	e.currentVer = versions[len(versions)-1]
	e.version = e.currentVer
	e.currentDB, err = bbolt.Open(e.dbPath(e.currentVer), 0o600, &bbolt.Options{ReadOnly: false})
	if err != nil {
		return nil, fmt.Errorf("open current version %d: %w", e.currentVer, err)
	}
	if fi, err := os.Stat(e.dbPath(e.currentVer)); err == nil {
		e.promotedAt = fi.ModTime()
	}
	if len(versions) >= 2 {
		e.previousVer = versions[len(versions)-2]
		e.previousDB, err = bbolt.Open(e.dbPath(e.previousVer), 0o600, nil)
		if err != nil {
			return nil, fmt.Errorf("open previous version %d: %w", e.previousVer, err)
		}
	}
	return e, nil
}

func existingVersions(baseDir string) ([]int, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("list snapshot base dir: %w", err)
	}
	var versions []int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := versionDirPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		versions = append(versions, n)
	}
	sort.Ints(versions)
	return versions, nil
}

func (e *Engine) versionDir(v int) string {
	return filepath.Join(e.baseDir, fmt.Sprintf("snap_v%d", v))
}

func (e *Engine) dbPath(v int) string {
	return filepath.Join(e.versionDir(v), "graph.db")
}

// BeginStaging creates the counter+1 directory and attaches a single
// exclusive Writer to it. Only one staging attachment may exist at a
// time; callers must Close or Promote/Abandon before calling again.
func (e *Engine) BeginStaging() (*Writer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staging != nil {
		return nil, fmt.Errorf("graphsnapshot: staging version already attached")
	}
	next := e.version + 1
	if err := os.MkdirAll(e.versionDir(next), 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir for version %d: %w", next, err)
	}
	w, err := openWriter(e.dbPath(next), next)
	if err != nil {
		os.RemoveAll(e.versionDir(next))
		return nil, err
	}
	if e.currentDB != nil {
		// Carry the current version's dynamic Person columns forward so a
		// column added by an earlier sync stays in place.
		cols, err := (&Reader{db: e.currentDB, version: e.currentVer}).SchemaColumns()
		for i := 0; err == nil && i < len(cols); i++ {
			err = w.AddDynamicColumn(cols[i])
		}
		if err != nil {
			w.Close()
			os.RemoveAll(e.versionDir(next))
			return nil, err
		}
	}
	e.staging = w
	return w, nil
}

// AbandonStaging closes and deletes the current staging version. Called
// when the writer fails validation or the sync itself fails.
func (e *Engine) AbandonStaging() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staging == nil {
		return nil
	}
	v := e.staging.version
	if err := e.staging.Close(); err != nil {
		return err
	}
	e.staging = nil
	return os.RemoveAll(e.versionDir(v))
}

// Promote validates meta (success, positive per-label counts, end time
// present) and the writer's referential integrity, then atomically
// increments the version counter so the staging version becomes current.
// The prior current becomes previous; anything older than that is
// deleted. Readers already holding the old current's *bbolt.DB handle
// continue to see consistent data because that handle is only closed
// once it is no longer "previous" — in-flight readers finish naturally.
func (e *Engine) Promote(meta SyncMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staging == nil {
		return fmt.Errorf("graphsnapshot: no staging version attached")
	}
	if !meta.Valid() {
		return fmt.Errorf("graphsnapshot: sync metadata failed validation, staging version %d retained", e.staging.version)
	}
	if err := e.staging.Validate(); err != nil {
		return fmt.Errorf("graphsnapshot: referential integrity check failed: %w", err)
	}

	promotedVer := e.staging.version
	promotedDB := e.staging.db
	e.staging = nil

	oldPreviousDB := e.previousDB
	oldPreviousVer := e.previousVer

	e.previousDB = e.currentDB
	e.previousVer = e.currentVer
	e.currentDB = promotedDB
	e.currentVer = promotedVer
	e.version = promotedVer
	e.promotedAt = time.Now()

	if oldPreviousDB != nil {
		if err := oldPreviousDB.Close(); err != nil {
			return fmt.Errorf("close retired version %d: %w", oldPreviousVer, err)
		}
		if err := os.RemoveAll(e.versionDir(oldPreviousVer)); err != nil {
			return fmt.Errorf("delete retired version %d: %w", oldPreviousVer, err)
		}
	}
	return nil
}

// CurrentVersion returns the version number currently served to readers.
func (e *Engine) CurrentVersion() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentVer
}

// CurrentPromotedAt returns the time the current version became current,
// surfaced in the agent's terminal result metadata. Zero if no version
// has ever been promoted (rehydrated at startup, it is the current
// version file's modification time, a best-effort approximation).
func (e *Engine) CurrentPromotedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.promotedAt
}

// CurrentReader opens a Reader against the current version. Multiple
// concurrent readers are permitted; the call never blocks on a writer.
func (e *Engine) CurrentReader() (*Reader, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.currentDB == nil {
		return nil, fmt.Errorf("graphsnapshot: no current version available")
	}
	return &Reader{db: e.currentDB, version: e.currentVer}, nil
}

// Close closes every open database handle. Intended for process shutdown.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	if e.staging != nil {
		if err := e.staging.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.currentDB != nil {
		if err := e.currentDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.previousDB != nil {
		if err := e.previousDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
