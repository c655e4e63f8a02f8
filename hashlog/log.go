package hashlog

import (
	"encoding/binary"
	"os"

	"github.com/fbenkstein/ninja/hashlog/errors"
)

// config holds the options accepted by OpenForWrite.
type config struct {
	lock          bool
	maxRecordSize int
}

// Option configures OpenForWrite.
type Option func(*config)

// WithLock causes OpenForWrite to take an advisory flock(2) guard on
// the log file for the lifetime of the returned *Log (§4.8). It is
// unnecessary, and a no-op on correctness, when the caller already
// guarantees single-writer access some other way.
func WithLock() Option {
	return func(c *config) { c.lock = true }
}

// WithMaxRecordSize overrides MaxRecordSize for the returned *Log,
// exercising the oversize-record error path in tests; production
// callers should not use this.
func WithMaxRecordSize(n int) Option {
	return func(c *config) { c.maxRecordSize = n }
}

// Log is an open, writable hash log: the file handle plus the State
// it is keeping in sync with the file. A Log is a plain value owned
// by exactly one goroutine at a time, per §5; it is not safe for
// concurrent use.
type Log struct {
	path          string
	file          *os.File
	state         *State
	lock          *fileLock
	maxRecordSize int
}

// OpenForWrite opens path for appending, creating it (and writing
// the signature and version) if it does not already exist. If state
// was flagged by a prior Load as overdue for compaction, OpenForWrite
// compacts the log before returning, exactly as §6.2 specifies; the
// returned warning, if non-empty, describes that compaction.
func OpenForWrite(path string, state *State, opts ...Option) (*Log, string, error) {
	cfg := config{maxRecordSize: MaxRecordSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lock *fileLock
	if cfg.lock {
		lock = newFileLock(path)
		if err := lock.Lock(); err != nil {
			return nil, "", err
		}
	}

	var warning string
	if state.NeedsRecompaction() {
		w, err := recompact(path, state)
		if err != nil {
			if lock != nil {
				lock.Unlock()
			}
			return nil, "", err
		}
		warning = w
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		if lock != nil {
			lock.Unlock()
		}
		return nil, "", errors.E(errors.WriteIO, "open log for write", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		if lock != nil {
			lock.Unlock()
		}
		return nil, "", errors.E(errors.WriteIO, "stat log", err)
	}
	if fi.Size() == 0 {
		header := make([]byte, 16)
		copy(header, Signature)
		binary.LittleEndian.PutUint32(header[12:16], Version)
		if _, err := f.Write(header); err != nil {
			f.Close()
			if lock != nil {
				lock.Unlock()
			}
			return nil, "", errors.E(errors.WriteIO, "write log header", err)
		}
	}

	l := &Log{
		path:          path,
		file:          f,
		state:         state,
		lock:          lock,
		maxRecordSize: cfg.maxRecordSize,
	}
	return l, warning, nil
}

// Close flushes and closes the underlying file, releasing the
// advisory lock if one was taken.
func (l *Log) Close() error {
	err := l.file.Close()
	if l.lock != nil {
		if uerr := l.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	if err != nil {
		return errors.E(errors.WriteIO, "close log", err)
	}
	return nil
}

// State returns the State this Log keeps synchronized with its file.
func (l *Log) State() *State { return l.state }

// write appends buf to the log file as a single call, so that a
// crash mid-write leaves at most a short read at EOF rather than a
// mix of two records (§5's "one flush per record").
func (l *Log) write(buf []byte) error {
	if _, err := l.file.Write(buf); err != nil {
		return errors.E(errors.WriteIO, "append record", err)
	}
	return nil
}

// GetOrCreateId returns the id assigned to path, allocating and
// persisting a new one if path has not been seen before (C2). On a
// write failure the id is not allocated: persistence happens before
// the in-memory insert.
func (l *Log) GetOrCreateId(path string) (Id, error) {
	if id, ok := l.state.GetId(path); ok {
		return id, nil
	}
	id := Id(l.state.idCount())
	buf, err := encodeIdentity(path, id)
	if err != nil {
		return NoID, err
	}
	if len(buf) > l.maxRecordSize+4 {
		return NoID, errors.E(errors.Oversize, "identity record")
	}
	if err := l.write(buf); err != nil {
		return NoID, err
	}
	l.state.assignId(path)
	return id, nil
}
