package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Snapshot mirrors an in-flight booking attempt so a restarted process
// can resume it instead of orphaning the server-side hold.  It is written
// on every committed transition from the combo step onward and cleared on
// success, cancellation and expiry.  Seat-selection state is never
// mirrored; before a session exists there is nothing worth recovering.
type Snapshot struct {
	BookingID           string      `json:"booking_id"`
	ScreeningID         uint64      `json:"screening_id"`
	Step                Step        `json:"step"`
	SeatIDs             []uint64    `json:"seat_ids"`
	Combos              []ComboLine `json:"combos"`
	PointsUsed          uint32      `json:"points_used"`
	PointsDiscountCents uint32      `json:"points_discount_cents"`
	ExpiresAt           time.Time   `json:"expires_at"`
}

// ErrNoSnapshot is returned by Store.Load when no mirror exists for the
// key.
var ErrNoSnapshot = errors.New("no snapshot")

// Store persists at most one Snapshot per key plus a short-lived restart
// marker.  The marker distinguishes a deliberate teardown, which cancels
// the session, from a restart, which should try to resume it: it is set
// just before a restart-style shutdown and consumed exactly once by the
// next load.
type Store interface {
	Save(key string, snap Snapshot) error
	Load(key string) (*Snapshot, error)
	Clear(key string) error
	SetRestartMarker(key string) error
	TakeRestartMarker(key string) bool
}

// FileStore keeps snapshots as JSON files under a directory, one file per
// key.  Writes go through a temp file and rename so a crash mid-write
// leaves the previous snapshot intact.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) snapPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) markerPath(key string) string {
	return filepath.Join(s.dir, key+".restart")
}

func (s *FileStore) Save(key string, snap Snapshot) error {
	buf, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := s.snapPath(key) + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapPath(key))
}

func (s *FileStore) Load(key string) (*Snapshot, error) {
	buf, err := os.ReadFile(s.snapPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(buf, &snap); err != nil {
		// A corrupt mirror is treated as absent; resuming from garbage
		// is worse than restarting the flow.
		return nil, ErrNoSnapshot
	}
	return &snap, nil
}

func (s *FileStore) Clear(key string) error {
	err := os.Remove(s.snapPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(s.markerPath(key))
	return nil
}

func (s *FileStore) SetRestartMarker(key string) error {
	return os.WriteFile(s.markerPath(key), []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)
}

func (s *FileStore) TakeRestartMarker(key string) bool {
	if _, err := os.Stat(s.markerPath(key)); err != nil {
		return false
	}
	_ = os.Remove(s.markerPath(key))
	return true
}

// MemStore is an in-memory Store for tests and short-lived embedders.
type MemStore struct {
	mu      sync.Mutex
	snaps   map[string]Snapshot
	markers map[string]bool
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{snaps: make(map[string]Snapshot), markers: make(map[string]bool)}
}

func (s *MemStore) Save(key string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[key] = snap
	return nil
}

func (s *MemStore) Load(key string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return &snap, nil
}

func (s *MemStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	delete(s.markers, key)
	return nil
}

func (s *MemStore) SetRestartMarker(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[key] = true
	return nil
}

func (s *MemStore) TakeRestartMarker(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.markers[key]
	delete(s.markers, key)
	return ok
}

// MirrorKey builds the per-screening key a booking attempt mirrors under.
// One attempt per screening per client; a second attempt for the same
// screening overwrites the first's mirror, matching the rule that
// sessions never chain.
func MirrorKey(screeningID uint64) string {
	return fmt.Sprintf("booking-%d", screeningID)
}
