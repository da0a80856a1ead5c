// Package store archives solved PEP results in an embedded BadgerDB.
//
// Records are keyed by the digest of the assembled problem, so solving the
// same problem twice overwrites the earlier record. The archive is
// optional: a PEP writes to it only when a store path is configured.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

const keyPrefix = "pep/result/"

// Weight is a named certificate weight
type Weight struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Record is the archived form of a result
type Record struct {
	Digest       string      `json:"digest"`
	ProblemID    string      `json:"problem_id"`
	Status       string      `json:"status"`
	SolverStatus string      `json:"solver_status"`
	Reason       string      `json:"reason,omitempty"`
	Bound        float64     `json:"bound"`
	DualBound    float64     `json:"dual_bound"`
	Iterations   int         `json:"iterations"`
	Rank         int         `json:"rank"`
	Gram         [][]float64 `json:"gram,omitempty"`
	Values       []float64   `json:"values,omitempty"`
	Weights      []Weight    `json:"weights,omitempty"`
	Verified     bool        `json:"verified"`
	Commitment   string      `json:"commitment,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
	SolvedAt     time.Time   `json:"solved_at"`
}

// Config holds the archive configuration
type Config struct {
	// Path is the database directory, ignored when InMemory is set
	Path string
	// InMemory keeps the archive in memory, for tests
	InMemory bool
	// SyncWrites fsyncs every write
	SyncWrites bool
	// Logger receives BadgerDB's internal logs; nil disables them
	Logger *utils.Logger
}

// DefaultConfig returns a durable on-disk configuration
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// WithLogger sets the logger
func (c Config) WithLogger(l *utils.Logger) Config {
	c.Logger = l
	return c
}

// badgerLogger adapts Logger to badger.Logger. Badger's info output is
// demoted to debug.
type badgerLogger struct {
	log *utils.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

// Archive is a result archive. It is safe for concurrent use.
type Archive struct {
	db  *badger.DB
	cfg Config
}

// Open opens the archive, creating its directory if needed
func Open(cfg Config) (*Archive, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, core.NewError(core.ErrInvalidConfig, "archive path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Archive{db: db, cfg: cfg}, nil
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores a record under its digest
func (a *Archive) Put(rec *Record) error {
	if rec == nil || rec.Digest == "" {
		return core.NewError(core.ErrInvalidInput, "record without digest")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Digest, err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.Digest), data)
	})
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.Digest, err)
	}
	if a.cfg.Logger != nil {
		a.cfg.Logger.Debug("result archived", "digest", rec.Digest, "status", rec.Status)
	}
	return nil
}

// Get returns the record stored under digest
func (a *Archive) Get(digest string) (*Record, error) {
	var rec Record
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + digest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.NewError(core.ErrNotFound, "no archived result for digest %s", digest)
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", digest, err)
	}
	return &rec, nil
}

// Delete removes the record stored under digest
func (a *Archive) Delete(digest string) error {
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + digest))
	})
}

// List returns every record, most recent first
func (a *Archive) List() ([]*Record, error) {
	var out []*Record
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			rec := new(Record)
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SolvedAt.After(out[j].SolvedAt) })
	return out, nil
}
