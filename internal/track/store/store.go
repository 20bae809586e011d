// Package store persists delivered activities in a pebble database.
//
// Keys are "activity/%020d" by admission sequence, so a forward scan
// returns activities in admission order. Values use a fixed big-endian
// encoding:
//
//	[kind:1][agent:8][submit:8][begin:8][end:8][notify:8]
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/golang/glog"

	"github.com/kolkov/asynctrack/internal/track/hsa"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

const (
	keyPrefix   = "activity/"
	valueLength = 1 + 8 + 4*8
)

// ErrNotFound is returned by Get for a sequence with no stored activity.
var ErrNotFound = errors.New("activity not found")

// Options configures Open.
type Options struct {
	// FS overrides the filesystem. nil means the OS filesystem.
	FS vfs.FS

	// Sync makes every Put durable before it returns.
	Sync bool
}

// Store is a pebble-backed tracker.Sink.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

var _ tracker.Sink = (*Store)(nil)

// Open opens or creates a store in dir.
func Open(dir string, opts Options) (*Store, error) {
	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", dir, err)
	}
	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}
	glog.V(1).Infof("store: opened %s (sync=%v)", dir, opts.Sync)
	return &Store{db: db, writeOpts: wo}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put implements tracker.Sink.
func (s *Store) Put(a tracker.Activity) error {
	return s.db.Set(keyFor(a.Sequence), encodeActivity(a), s.writeOpts)
}

// Get returns the activity stored for seq.
func (s *Store) Get(seq uint64) (tracker.Activity, error) {
	val, closer, err := s.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return tracker.Activity{}, fmt.Errorf("%w: sequence %d", ErrNotFound, seq)
	}
	if err != nil {
		return tracker.Activity{}, err
	}
	defer closer.Close()

	return decodeActivity(seq, val)
}

// Scan calls fn for every stored activity in sequence order. A non-nil
// error from fn stops the scan and is returned.
func (s *Store) Scan(fn func(tracker.Activity) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		a, err := decodeActivity(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return iter.Error()
}

func encodeActivity(a tracker.Activity) []byte {
	buf := make([]byte, valueLength)
	buf[0] = byte(a.Kind)
	binary.BigEndian.PutUint64(buf[1:9], a.Agent.Handle)
	binary.BigEndian.PutUint64(buf[9:17], a.Record.SubmitNs)
	binary.BigEndian.PutUint64(buf[17:25], a.Record.BeginNs)
	binary.BigEndian.PutUint64(buf[25:33], a.Record.EndNs)
	binary.BigEndian.PutUint64(buf[33:41], a.Record.NotifyNs)
	return buf
}

func decodeActivity(seq uint64, b []byte) (tracker.Activity, error) {
	if len(b) != valueLength {
		return tracker.Activity{}, fmt.Errorf("sequence %d: invalid record length %d", seq, len(b))
	}
	return tracker.Activity{
		Sequence: seq,
		Kind:     tracker.Kind(b[0]),
		Agent:    hsa.Agent{Handle: binary.BigEndian.Uint64(b[1:9])},
		Record: tracker.Record{
			SubmitNs: binary.BigEndian.Uint64(b[9:17]),
			BeginNs:  binary.BigEndian.Uint64(b[17:25]),
			EndNs:    binary.BigEndian.Uint64(b[25:33]),
			NotifyNs: binary.BigEndian.Uint64(b[33:41]),
		},
	}, nil
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
