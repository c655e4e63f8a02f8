package hashlog

import (
	"os"
	"sort"

	"github.com/willf/bitset"

	"github.com/fbenkstein/ninja/hashlog/errors"
)

// Recompact rewrites l's log to its minimal form: one identity
// record per id still reachable from a live output, one snapshot
// record per live output, nothing else. It replaces l's State in
// place with the freshly renumbered one and atomically swaps the
// rewritten file into l's path (C8).
func (l *Log) Recompact() error {
	if err := l.file.Close(); err != nil {
		return errors.E(errors.WriteIO, "close log before recompact", err)
	}
	warning, err := recompact(l.path, l.state)
	f, ferr := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if ferr != nil {
		if err == nil {
			err = errors.E(errors.WriteIO, "reopen log after recompact", ferr)
		}
	} else {
		l.file = f
	}
	_ = warning
	return err
}

// recompact is the shared implementation behind Log.Recompact and
// OpenForWrite's pre-append compaction: it writes a fresh, minimal
// log to path+".recompact" from oldState's live outputs, then
// unlinks path and renames the temp file into place. oldState is
// updated in place to the freshly renumbered state on success; it is
// left untouched on failure, so the original log stays intact per
// §4.7 step 7.
//
// An output is live if oldState still carries a non-empty snapshot
// for it. The source re-derives each live output's inputs from the
// current edge definition and keeps only those that already had a
// known hash; since this package's writer never records an input
// without first computing its hash, an existing snapshot already
// satisfies that filter, so no access to the build graph is needed
// here (see the design notes on Recompact's signature).
func recompact(path string, oldState *State) (warning string, err error) {
	tempPath := path + ".recompact"
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return "", errors.E(errors.WriteIO, "remove stale recompact temp file", err)
	}

	newState := NewState()
	newLog, _, err := OpenForWrite(tempPath, newState)
	if err != nil {
		return "", err
	}

	live := bitset.New(uint(oldState.idCount()))
	for id := 0; id < oldState.idCount(); id++ {
		if snap, has := oldState.outputSnapshot(Id(id)); has && len(snap.Inputs) > 0 {
			live.Set(uint(id))
		}
	}

	for id := uint(0); id < uint(oldState.idCount()); id++ {
		if !live.Test(id) {
			continue
		}
		outID := Id(id)
		snap, _ := oldState.outputSnapshot(outID)

		newOutID, err := newLog.GetOrCreateId(oldState.path(outID))
		if err != nil {
			newLog.Close()
			return "", err
		}

		newInputs := make([]InputRecord, len(snap.Inputs))
		for i, in := range snap.Inputs {
			newInID, err := newLog.GetOrCreateId(oldState.path(in.ID))
			if err != nil {
				newLog.Close()
				return "", err
			}
			newLog.state.setHashRecord(newInID, in.HashRecord)
			newInputs[i] = InputRecord{ID: newInID, HashRecord: in.HashRecord}
		}
		sort.Slice(newInputs, func(i, j int) bool { return newInputs[i].ID < newInputs[j].ID })

		buf, err := encodeSnapshot(newOutID, newInputs)
		if err != nil {
			newLog.Close()
			return "", err
		}
		if err := newLog.write(buf); err != nil {
			newLog.Close()
			return "", err
		}
		newLog.state.setOutputSnapshot(newOutID, OutputSnapshot{Inputs: newInputs})
	}

	if err := newLog.Close(); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", errors.E(errors.Rename, "unlink old log", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return "", errors.E(errors.Rename, "rename recompacted log into place", err)
	}

	*oldState = *newLog.state
	oldState.needsRecompaction = false
	return "recompacted log", nil
}
