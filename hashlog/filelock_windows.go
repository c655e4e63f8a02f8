//go:build windows
// +build windows

package hashlog

import (
	"sync"

	"golang.org/x/sys/windows"

	"github.com/fbenkstein/ninja/hashlog/errors"
)

// fileLock is the Windows counterpart of the unix fileLock: an
// advisory, single-writer guard over a log file taken by
// OpenForWrite before truncation or append.
type fileLock struct {
	path   string
	handle windows.Handle
	mu     sync.Mutex
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path}
}

func (l *fileLock) Lock() error {
	l.mu.Lock()
	h, err := windows.Open(l.path, windows.O_CREAT|windows.O_RDWR, 0666)
	if err != nil {
		l.mu.Unlock()
		return errors.E(errors.WriteIO, "open lock file", err)
	}
	l.handle = h
	ol := new(windows.Overlapped)
	const allBytes = ^uint32(0)
	if err := windows.LockFileEx(l.handle, windows.LOCKFILE_EXCLUSIVE_LOCK, 0, allBytes, allBytes, ol); err != nil {
		windows.Close(l.handle)
		l.mu.Unlock()
		return errors.E(errors.WriteIO, "LockFileEx", err)
	}
	return nil
}

func (l *fileLock) Unlock() error {
	ol := new(windows.Overlapped)
	const allBytes = ^uint32(0)
	err := windows.UnlockFileEx(l.handle, 0, allBytes, allBytes, ol)
	if cerr := windows.Close(l.handle); err == nil {
		err = cerr
	}
	l.mu.Unlock()
	if err != nil {
		return errors.E(errors.WriteIO, "UnlockFileEx", err)
	}
	return nil
}
