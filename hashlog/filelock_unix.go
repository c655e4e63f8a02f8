//go:build !windows
// +build !windows

package hashlog

import (
	"log"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/fbenkstein/ninja/hashlog/errors"
)

// fileLock is an advisory, single-writer guard over a log file,
// taken by OpenForWrite before the file is truncated or appended to.
// It is not part of the on-disk data model: two processes racing on
// the same path without WithLock will simply clobber each other, the
// way ninja's own writer does when build.ninja isn't itself locked.
type fileLock struct {
	path string
	fd   int
	mu   sync.Mutex
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path}
}

// Lock blocks until the advisory lock on l's path is held.
func (l *fileLock) Lock() error {
	l.mu.Lock()
	fd, err := unix.Open(l.path, unix.O_CREAT|unix.O_RDWR, 0666)
	if err != nil {
		l.mu.Unlock()
		return errors.E(errors.WriteIO, "open lock file", err)
	}
	l.fd = fd
	for {
		err = unix.Flock(l.fd, unix.LOCK_EX)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		unix.Close(l.fd)
		l.mu.Unlock()
		return errors.E(errors.WriteIO, "flock", err)
	}
	return nil
}

// Unlock releases the advisory lock taken by Lock.
func (l *fileLock) Unlock() error {
	err := unix.Flock(l.fd, unix.LOCK_UN)
	if cerr := unix.Close(l.fd); err == nil {
		err = cerr
	}
	l.mu.Unlock()
	if err != nil {
		log.Printf("unlock %s: %v", l.path, err)
		return errors.E(errors.WriteIO, "funlock", err)
	}
	return nil
}
