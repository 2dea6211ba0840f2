package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

const (
	filePrefix = "world-"
	fileSuffix = ".msgpack"
)

// DefaultKeep is how many snapshot files a store retains
const DefaultKeep = 5

// ErrNoSnapshot is returned by Latest when the directory holds no snapshots
var ErrNoSnapshot = errors.New("no snapshot found")

// Store writes world snapshots to a directory
type Store struct {
	dir     string
	keep    int
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewStore creates the snapshot directory if needed and returns a store whose
// circuit breaker is configured from envConfig.
func NewStore(dir string, envConfig *config.EnvironmentConfig, logger *logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	logger = logger.With("component", "snapshots", "dir", dir)

	settings := gobreaker.Settings{
		Name:        "snapshot-store",
		MaxRequests: envConfig.CircuitBreakerMaxRequests,
		Interval:    envConfig.CircuitBreakerInterval,
		Timeout:     envConfig.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= envConfig.CircuitBreakerMaxConsecutiveFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Store{
		dir:     dir,
		keep:    DefaultKeep,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}, nil
}

// SetKeep changes how many snapshot files are retained. Values below one are
// ignored.
func (s *Store) SetKeep(keep int) {
	if keep >= 1 {
		s.keep = keep
	}
}

// Dir returns the snapshot directory
func (s *Store) Dir() string {
	return s.dir
}

// Save writes snap atomically and returns its path. Older snapshots beyond
// the retention count are removed.
func (s *Store) Save(ctx context.Context, snap *WorldSnapshot) (string, error) {
	data, err := Marshal(snap)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s%012d%s", filePrefix, snap.Tick, fileSuffix))
	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, writeAtomic(path, data)
	})
	if err != nil {
		s.logger.Error(ctx, "snapshot save failed", err,
			"path", path,
			"state", s.breaker.State().String(),
		)
		return "", fmt.Errorf("circuit breaker: %w", err)
	}

	if err := s.prune(); err != nil {
		s.logger.Warn(ctx, "snapshot prune failed", "error", err.Error())
	}

	s.logger.Debug(ctx, "snapshot saved", "path", path, "tick", snap.Tick, "vehicles", len(snap.Vehicles))
	return path, nil
}

// Load reads the snapshot at path
func (s *Store) Load(path string) (*WorldSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap, err := Unmarshal(data)
	if err != nil {
		return nil, logging.WrapError(err, "snapshot %s", filepath.Base(path))
	}
	return snap, nil
}

// Latest loads the most recent snapshot in the directory
func (s *Store) Latest() (*WorldSnapshot, string, error) {
	files, err := s.list()
	if err != nil {
		return nil, "", err
	}
	if len(files) == 0 {
		return nil, "", ErrNoSnapshot
	}
	path := files[len(files)-1]
	snap, err := s.Load(path)
	if err != nil {
		return nil, "", err
	}
	return snap, path, nil
}

// State returns the circuit breaker state
func (s *Store) State() gobreaker.State {
	return s.breaker.State()
}

// Counts returns the circuit breaker counters
func (s *Store) Counts() gobreaker.Counts {
	return s.breaker.Counts()
}

// list returns snapshot paths sorted oldest first
func (s *Store) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(s.dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) prune() error {
	files, err := s.list()
	if err != nil {
		return err
	}
	for len(files) > s.keep {
		if err := os.Remove(files[0]); err != nil {
			return fmt.Errorf("failed to remove old snapshot: %w", err)
		}
		files = files[1:]
	}
	return nil
}

// writeAtomic writes data to a temporary file and renames it over path so
// readers never observe a partial snapshot
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}
