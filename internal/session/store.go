// Package session implements the durable per-session store (§4.2, §8): one
// JSON file per live session, atomic temp-file-then-rename writes,
// optimistic-concurrency (revision) rejection of stale updates, per-session
// mutex isolation so concurrent calls against the same session serialize
// without blocking unrelated sessions, and an inactivity archival sweep.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dnnyngyen/phasecore/internal/types"
)

const (
	sessionsSubdir = "live"
	archiveSubdir  = "archive"

	// DefaultArchiveAfter is how long a session may sit inactive before an
	// archival sweep moves it out of the live set.
	DefaultArchiveAfter = 24 * time.Hour

	// DefaultSweepInterval bounds how often ProcessState calls trigger an
	// opportunistic sweep; callers that want one on every call should use
	// Archive directly instead of MaybeSweep.
	DefaultSweepInterval = 5 * time.Minute
)

// Store is a filesystem-backed session store rooted at BaseDir.
type Store struct {
	BaseDir string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	lastSweepUnix int64 // atomic, unix nanos of the last opportunistic sweep
}

// New builds a Store rooted at baseDir, creating the live/archive
// directories if they do not already exist.
func New(baseDir string) (*Store, error) {
	s := &Store{BaseDir: baseDir, locks: make(map[string]*sync.Mutex)}
	for _, dir := range []string{s.liveDir(), s.archiveDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return s, nil
}

// MaybeSweep runs Archive against the archiveAfter cutoff if at least
// interval has passed since the last sweep run through MaybeSweep (a direct
// Archive call does not reset that clock), and is a no-op otherwise. It is safe to call on every ProcessState
// request: the atomic guard keeps concurrent callers from all paying the
// directory-scan cost at once.
func (s *Store) MaybeSweep(archiveAfter, interval time.Duration) ([]string, error) {
	last := atomic.LoadInt64(&s.lastSweepUnix)
	nowNanos := now().UnixNano()
	if last != 0 && time.Duration(nowNanos-last) < interval {
		return nil, nil
	}
	if !atomic.CompareAndSwapInt64(&s.lastSweepUnix, last, nowNanos) {
		return nil, nil
	}
	return s.Archive(now().Add(-archiveAfter))
}

func (s *Store) liveDir() string    { return filepath.Join(s.BaseDir, sessionsSubdir) }
func (s *Store) archiveDir() string { return filepath.Join(s.BaseDir, archiveSubdir) }

func (s *Store) livePath(id string) string    { return filepath.Join(s.liveDir(), id+".json") }
func (s *Store) archivePath(id string) string { return filepath.Join(s.archiveDir(), id+".json") }

// lockFor returns the mutex guarding id, creating it on first use. Distinct
// session IDs never contend with each other.
func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// Get loads a live session by ID.
func (s *Store) Get(sessionID string) (*types.Session, error) {
	if !types.ValidSessionID(sessionID) {
		return nil, types.ErrInvalidSessionID
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return s.readLocked(sessionID)
}

func (s *Store) readLocked(sessionID string) (*types.Session, error) {
	data, err := os.ReadFile(s.livePath(sessionID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", types.ErrInternalStore, "session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInternalStore, err)
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInternalStore, err)
	}
	return &sess, nil
}

// Create persists a brand-new session at revision 1. It fails if a live
// session with the same ID already exists.
func (s *Store) Create(sess *types.Session) error {
	if !types.ValidSessionID(sess.SessionID) {
		return types.ErrInvalidSessionID
	}

	lock := s.lockFor(sess.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.livePath(sess.SessionID)); err == nil {
		return fmt.Errorf("%w: session %s already exists", types.ErrInternalStore, sess.SessionID)
	}

	sess.Revision = 1
	return s.writeLocked(sess)
}

// Update loads the current session, rejects the call if expectedRevision is
// nonzero and does not match the stored revision (§8 CAS), applies mutate,
// bumps the revision, and persists atomically. mutate must not change
// SessionID or Revision directly.
func (s *Store) Update(sessionID string, expectedRevision int64, mutate func(*types.Session) error) (*types.Session, error) {
	if !types.ValidSessionID(sessionID) {
		return nil, types.ErrInvalidSessionID
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.readLocked(sessionID)
	if err != nil {
		return nil, err
	}

	if expectedRevision != 0 && sess.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: have revision %d, expected %d",
			types.ErrStaleRevision, sess.Revision, expectedRevision)
	}

	if err := mutate(sess); err != nil {
		return nil, err
	}

	sess.Revision++
	sess.LastActivity = now()

	if err := s.writeLocked(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) writeLocked(sess *types.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInternalStore, err)
	}
	if err := atomicWrite(s.livePath(sess.SessionID), data); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInternalStore, err)
	}
	return nil
}

// Archive moves every live session whose LastActivity is strictly before
// cutoff into the archive set, and returns the IDs moved. It is safe to
// call opportunistically (e.g. on every Get) or as an explicit sweep; a
// session already archived, or concurrently updated past the cutoff, is
// simply skipped rather than erroring the whole sweep.
func (s *Store) Archive(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.liveDir())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInternalStore, err)
	}

	var moved []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := trimJSONExt(entry.Name())
		if id == "" {
			continue
		}

		if s.archiveOne(id, cutoff) {
			moved = append(moved, id)
		}
	}
	return moved, nil
}

func (s *Store) archiveOne(id string, cutoff time.Time) bool {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.readLocked(id)
	if err != nil {
		return false
	}
	if !sess.LastActivity.Before(cutoff) {
		return false
	}

	archived := types.ArchivedSession{Session: *sess, ArchivedAt: now(), ArchiveID: uuid.NewString()}
	data, err := json.MarshalIndent(archived, "", "  ")
	if err != nil {
		return false
	}
	if err := atomicWrite(s.archivePath(id), data); err != nil {
		return false
	}
	if err := os.Remove(s.livePath(id)); err != nil {
		return false
	}
	return true
}

// atomicWrite writes data to a temp file in path's directory and renames it
// into place, so a crash mid-write never leaves a corrupt session file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}

func trimJSONExt(name string) string {
	const ext = ".json"
	if len(name) <= len(ext) || name[len(name)-len(ext):] != ext {
		return ""
	}
	return name[:len(name)-len(ext)]
}

// now is a seam so tests can't accidentally depend on wall-clock timing of
// LastActivity beyond what they explicitly set up.
var now = time.Now
