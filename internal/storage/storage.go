// Package storage keeps an audit log of served decisions.
// It uses BoltDB as the underlying storage engine. Records are keyed by the
// time they were served so range queries are a single cursor scan.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"credit-scoring/internal/scoring"

	"go.etcd.io/bbolt"
)

const (
	decisionsBucket = "decisions"    // Bucket name for decision records
	dbFile          = "decisions.db" // Database file inside the data path

	// zero padded so lexical key order is time order
	keyTimeFormat = "%020d"
)

var (
	minKeyTime = time.Unix(0, 0)
	maxKeyTime = time.Unix(0, math.MaxInt64-1)
)

// Store persists decision records using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the decision log under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(decisionsBucket)); err != nil {
			return fmt.Errorf("create decisions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordDecision appends rec to the log. The key is the serve time in unix
// nanoseconds followed by the request ID, so records served in the same
// nanosecond do not overwrite each other.
func (s *Store) RecordDecision(ctx context.Context, rec scoring.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(decisionsBucket))
		key := decisionKey(rec.Timestamp, rec.RequestID)
		if rec.RequestID == "" {
			// no request ID, fall back to the bucket sequence for uniqueness
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("next sequence: %w", err)
			}
			key = decisionKey(rec.Timestamp, fmt.Sprintf("seq%d", seq))
		}
		return b.Put(key, data)
	})
}

// Summary counts the decisions served within a window.
type Summary struct {
	Total  int `json:"total"`
	Accept int `json:"accept"`
	Reject int `json:"reject"`
}

func (sum *Summary) add(d scoring.Decision) {
	sum.Total++
	switch d {
	case scoring.Accept:
		sum.Accept++
	case scoring.Reject:
		sum.Reject++
	}
}

// Window is one consistent read of the log.
type Window struct {
	Summary   Summary
	Decisions []scoring.DecisionRecord
	Truncated bool
}

// QueryDecisions reads [start, end] in a single transaction. Summary covers
// every record in the range; Decisions holds at most limit of them, oldest
// first, and Truncated reports whether any were left out. limit <= 0 returns
// all. Malformed records are skipped.
func (s *Store) QueryDecisions(start, end time.Time, limit int) (Window, error) {
	win := Window{Decisions: []scoring.DecisionRecord{}}

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(decisionsBucket)).Cursor()

		startKey := []byte(fmt.Sprintf(keyTimeFormat, keyNanos(start)))
		// every key for end sorts below end+1ns
		endKey := []byte(fmt.Sprintf(keyTimeFormat, keyNanos(end)+1))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) < 0; k, v = c.Next() {
			var rec scoring.DecisionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			win.Summary.add(rec.Decision)
			if limit > 0 && len(win.Decisions) >= limit {
				win.Truncated = true
				continue
			}
			win.Decisions = append(win.Decisions, rec)
		}
		return nil
	})
	if err != nil {
		return Window{}, err
	}

	return win, nil
}

// GetDecisions returns every record served within [start, end], oldest first.
func (s *Store) GetDecisions(start, end time.Time) ([]scoring.DecisionRecord, error) {
	win, err := s.QueryDecisions(start, end, 0)
	return win.Decisions, err
}

// keyNanos maps t onto the key space. Times before the epoch would print
// with a sign and break lexical order, and UnixNano is undefined past
// 2262, so both ends are clamped.
func keyNanos(t time.Time) int64 {
	switch {
	case t.Before(minKeyTime):
		return 0
	case t.After(maxKeyTime):
		return math.MaxInt64 - 1
	}
	return t.UnixNano()
}

func decisionKey(ts time.Time, suffix string) []byte {
	return []byte(fmt.Sprintf(keyTimeFormat+"_%s", keyNanos(ts), suffix))
}
