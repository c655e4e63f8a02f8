package hashlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/willf/bitset"

	"github.com/fbenkstein/ninja/hashlog/errors"
)

// MinCompactionCount is the floor used by the compaction heuristic:
// a log is flagged for recompaction once it holds more snapshot
// records than max(MinCompactionCount, 3*live_outputs).
const MinCompactionCount = 1000

// Load reads the hash log at path into state, replaying identity and
// snapshot records to reconstruct the identity table, hash cache,
// and output snapshot store. A missing file is success with state
// left untouched (typically empty). Corruption of any kind —
// unknown signature/version, a torn tail, a structural violation —
// is recovered from: the file is truncated (or deleted, for a bad
// header) and Load still returns a nil error, with warning
// describing what was recovered from. Load returns a non-nil error
// only for a genuine I/O failure, never for a corrupted file.
func Load(path string, state *State) (warning string, err error) {
	return scan(path, state, true)
}

// Verify replays the log at path the same way Load does, populating
// state, but never truncates or deletes the file: a non-empty
// warning describes exactly what Load would have recovered from, had
// it been called instead. It is the basis for "ninjahash verify".
func Verify(path string, state *State) (warning string, err error) {
	return scan(path, state, false)
}

// scan is the shared implementation of Load and Verify. When mutate
// is false it opens the file read-only and stops short of the
// Truncate/Remove calls that repair corruption on disk.
func scan(path string, state *State, mutate bool) (warning string, err error) {
	flag := os.O_RDONLY
	if mutate {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.E(errors.ReadIO, "open log", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	_, rerr := io.ReadFull(f, header)
	if rerr != nil || string(header[:12]) != Signature || binary.LittleEndian.Uint32(header[12:16]) != Version {
		if !mutate {
			return "bad signature or unknown version", nil
		}
		f.Close()
		if err := os.Remove(path); err != nil {
			return "", errors.E(errors.WriteIO, "delete bad header log", err)
		}
		return "bad signature or unknown version; deleted", nil
	}

	liveOutputs := bitset.New(0)
	snapshotCount := 0

	validOffset := int64(16)
	var truncReason string
	for {
		var frameHeader [4]byte
		nr, rerr := io.ReadFull(f, frameHeader[:])
		if rerr == io.EOF && nr == 0 {
			break
		}
		if rerr != nil {
			truncReason = "short record header; torn tail"
			break
		}
		isSnapshot, size := decodeFrameHeader(frameHeader[:])
		if size > MaxRecordSize {
			truncReason = "record exceeds maximum size"
			break
		}
		payload := make([]byte, size)
		if _, rerr := io.ReadFull(f, payload); rerr != nil {
			truncReason = "short record payload; torn tail"
			break
		}

		if !isSnapshot {
			path, derr := decodeIdentity(payload, Id(state.idCount()))
			if derr != nil {
				truncReason = derr.Error()
				break
			}
			state.assignId(path)
		} else {
			maxID := Id(state.idCount() - 1)
			outputID, inputs, derr := decodeSnapshot(payload, maxID)
			if derr != nil {
				truncReason = derr.Error()
				break
			}
			applySnapshotLoad(state, outputID, inputs)
			snapshotCount++
			liveOutputs.Set(uint(outputID))
		}
		validOffset += 4 + int64(size)
	}

	if truncReason != "" {
		if mutate {
			if terr := f.Truncate(validOffset); terr != nil {
				return "", errors.E(errors.WriteIO, "truncate torn tail", terr)
			}
			if _, serr := f.Seek(validOffset, io.SeekStart); serr != nil {
				return "", errors.E(errors.WriteIO, "seek after truncate", serr)
			}
			warning = fmt.Sprintf("%s; recovering", truncReason)
		} else {
			warning = fmt.Sprintf("%s; would truncate at offset %d", truncReason, validOffset)
		}
	}

	state.needsRecompaction = snapshotCount > MinCompactionCount && uint(snapshotCount) > 3*liveOutputs.Count()
	return warning, nil
}

// applySnapshotLoad installs a freshly-decoded snapshot into state,
// applying C3's mtime-adoption rule along the way: an input entry
// whose recorded mtime is newer than the currently cached mtime for
// that id updates the cache without rehashing, since the snapshot
// that mentions the newest mtime for an id is, by construction, the
// most recent observation of it.
func applySnapshotLoad(state *State, outputID Id, inputs []InputRecord) {
	for _, in := range inputs {
		cached, ok := state.hashRecord(in.ID)
		if !ok || in.MTime > cached.MTime {
			state.setHashRecord(in.ID, in.HashRecord)
		}
	}
	state.setOutputSnapshot(outputID, OutputSnapshot{Inputs: inputs})
}
