// Package journal keeps a history of batch runs in a BoltDB file.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const runsBucket = "runs"

// ErrRunNotFound is returned by GetRun for an unknown ID
var ErrRunNotFound = errors.New("run not found")

// Run is the persisted summary of one batch run
type Run struct {
	ID         string    `json:"id"`
	Directory  string    `json:"directory"`
	Provider   string    `json:"provider"`
	Attempted  int       `json:"attempted"`
	Recorded   int       `json:"recorded"`
	Skipped    []SkippedFile    `json:"skipped,omitempty"`
	CSVPath    string    `json:"csv_path,omitempty"`
	XLSXPath   string    `json:"xlsx_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SkippedFile is a file left out of a run
type SkippedFile struct {
	File   string `json:"file"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Store defines the journal operations
type Store interface {
	// SaveRun saves a run, replacing any run with the same ID
	SaveRun(run *Run) error

	// GetRun retrieves a run by ID
	GetRun(id string) (*Run, error)

	// ListRuns returns all runs, newest first
	ListRuns() ([]*Run, error)

	// Close closes the journal
	Close() error
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// Open opens or creates the journal at path
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveRun saves a run to the journal
func (b *BoltStore) SaveRun(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshaling run: %w", err)
		}
		return bucket.Put([]byte(run.ID), data)
	})
}

// GetRun retrieves a run by ID
func (b *BoltStore) GetRun(id string) (*Run, error) {
	var run *Run
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs, newest first
func (b *BoltStore) ListRuns() ([]*Run, error) {
	runs := make([]*Run, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshaling run: %w", err)
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
