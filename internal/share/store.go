// Package share implements the short-link store: a key to grid-state
// mapping persisted as one JSON file per entry, with age and
// inactivity based eviction.
package share

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridstream/multiview/backend/internal/infrastructure/config"
	"github.com/gridstream/multiview/backend/internal/infrastructure/logging"
	"github.com/gridstream/multiview/backend/internal/infrastructure/monitoring"
)

// ErrNotFound reports a missing or already-evicted share id.
var ErrNotFound = errors.New("share not found")

// idRe guards against path traversal through the id parameter.
var idRe = regexp.MustCompile(`^[a-f0-9]{8}$`)

// entry is the on-disk representation.
type entry struct {
	ID        string                 `json:"id"`
	State     map[string]interface{} `json:"state"`
	CreatedAt time.Time              `json:"createdAt"`
	TouchedAt time.Time              `json:"touchedAt"`
}

// Store is the file-backed share store. Safe for concurrent use.
type Store struct {
	cfg     config.ShareConfig
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex // serializes create/touch/evict on one process
}

// NewStore creates the store and its backing directory.
func NewStore(cfg config.ShareConfig, log *logging.Logger, metrics *monitoring.Metrics) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create share dir: %w", err)
	}
	return &Store{
		cfg:     cfg,
		log:     log.Named("share"),
		metrics: metrics,
	}, nil
}

// Create persists state and returns its short id.
func (s *Store) Create(state map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID()
	now := time.Now().UTC()
	record := entry{
		ID:        id,
		State:     state,
		CreatedAt: now,
		TouchedAt: now,
	}

	data, err := sonic.Marshal(&record)
	if err != nil {
		return "", fmt.Errorf("failed to encode share: %w", err)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write share: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SharesCreated.Inc()
	}
	return id, nil
}

// Get returns the stored state and refreshes its inactivity clock.
func (s *Store) Get(id string) (map[string]interface{}, error) {
	if !idRe.MatchString(id) {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read share: %w", err)
	}

	var record entry
	if err := sonic.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode share: %w", err)
	}

	record.TouchedAt = time.Now().UTC()
	if updated, err := sonic.Marshal(&record); err == nil {
		_ = os.WriteFile(s.path(id), updated, 0o644)
	}

	return record.State, nil
}

// RunSweeper evicts expired entries on an interval until ctx ends.
func (s *Store) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep removes entries past the age or inactivity threshold and
// refreshes the active-count gauge.
func (s *Store) Sweep() {
	now := time.Now().UTC()
	var (
		countMu sync.Mutex
		active  int64
		evicted int64
	)

	walkCfg := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&walkCfg, s.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		expired := s.expired(path, now)
		countMu.Lock()
		if expired {
			evicted++
		} else {
			active++
		}
		countMu.Unlock()

		if expired {
			if removeErr := os.Remove(path); removeErr != nil {
				s.log.Warn("failed to evict share", zap.String("path", path), zap.Error(removeErr))
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("share sweep failed", zap.Error(err))
		return
	}

	if s.metrics != nil {
		s.metrics.SharesActive.Set(float64(active))
		s.metrics.SharesEvicted.Add(float64(evicted))
	}
	if evicted > 0 {
		s.log.Info("share sweep evicted entries",
			zap.Int64("evicted", evicted),
			zap.Int64("active", active),
		)
	}
}

// expired reads just enough of an entry to apply the thresholds.
// Unreadable entries are treated as expired.
func (s *Store) expired(path string, now time.Time) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	var record entry
	if err := sonic.Unmarshal(data, &record); err != nil {
		return true
	}
	if now.Sub(record.CreatedAt) > s.cfg.MaxAge {
		return true
	}
	return now.Sub(record.TouchedAt) > s.cfg.MaxInactive
}

func (s *Store) path(id string) string {
	return filepath.Join(s.cfg.Dir, id+".json")
}

// newID derives a compact id from a random UUID. Eight hex chars keep
// links short; collisions across a store this size are not a concern.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
