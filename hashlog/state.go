package hashlog

// Id is a dense, non-negative integer identifying a path. Ids are
// allocated in strictly increasing order starting at 0 and, outside
// of compaction, are never reused.
type Id int32

// NoID is the sentinel value returned by GetId for a path with no
// assigned id yet.
const NoID Id = -1

// HashValue is the fixed-width content hash produced by a
// graph.Hasher.
type HashValue uint32

// HashRecord is the last-computed (mtime, size, hash) triple for a
// single id: C3's cache entry.
type HashRecord struct {
	MTime int32
	Size  int64
	Value HashValue
}

// InputRecord is one entry of an OutputSnapshot: an input's id paired
// with the HashRecord that was in effect when the snapshot was
// written.
type InputRecord struct {
	ID Id
	HashRecord
}

// OutputSnapshot is the recorded input set for one output: C4's
// per-output entry. Inputs is kept strictly ascending by ID with no
// duplicates, per invariant 3.
type OutputSnapshot struct {
	Inputs []InputRecord
}

// find returns the InputRecord for id via binary search, and whether
// it was found. Inputs is assumed sorted ascending by ID.
func (s *OutputSnapshot) find(id Id) (*InputRecord, bool) {
	lo, hi := 0, len(s.Inputs)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Inputs[mid].ID < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo != len(s.Inputs) && s.Inputs[lo].ID == id {
		return &s.Inputs[lo], true
	}
	return nil, false
}

// State is the full in-memory reconstruction of a hash log: the
// identity table (C2), the hash cache (C3), and the output snapshot
// store (C4). It is a plain value, not a singleton; a build engine
// threads it explicitly, typically owned by a *Log.
type State struct {
	// ids maps a path to its assigned Id. Kept in step with paths.
	ids map[string]Id
	// paths maps an Id back to its path, indexed by Id. len(paths)
	// is the number of ids ever assigned.
	paths []string
	// hashes holds the last-computed HashRecord for an id, indexed
	// by Id; a zero-value entry can still mean "hashed once", so
	// presence is tracked by the parallel hashed slice, not a
	// sentinel value.
	hashes []HashRecord
	hashed []bool
	// outputs holds the OutputSnapshot for an id, indexed by Id; nil
	// Inputs (or absence, tracked by hasOutput) means no record.
	outputs   []OutputSnapshot
	hasOutput []bool

	// needsRecompaction is set by Load per §4.5 step 5 and consulted
	// by OpenForWrite, which compacts before appending if it is set.
	needsRecompaction bool
}

// NeedsRecompaction reports whether the most recent Load flagged
// this state's log as overdue for compaction.
func (s *State) NeedsRecompaction() bool { return s.needsRecompaction }

// IDCount returns the number of ids assigned so far, i.e. the number
// of distinct paths this state has ever seen.
func (s *State) IDCount() int { return s.idCount() }

// Path returns the path assigned to id. It panics if id has not
// been assigned, like any other out-of-range index operation.
func (s *State) Path(id Id) string { return s.path(id) }

// Hash returns the cached HashRecord for id, and whether id has ever
// been hashed.
func (s *State) Hash(id Id) (HashRecord, bool) { return s.hashRecord(id) }

// Snapshot returns the recorded OutputSnapshot for id, and whether
// one exists.
func (s *State) Snapshot(id Id) (OutputSnapshot, bool) {
	snap, ok := s.outputSnapshot(id)
	if !ok {
		return OutputSnapshot{}, false
	}
	return *snap, true
}

// NewState returns an empty State, as if Load had been called
// against a path that does not exist.
func NewState() *State {
	return &State{ids: make(map[string]Id)}
}

// GetId returns the id assigned to path, and whether one has been
// assigned (C2 GetId).
func (s *State) GetId(path string) (Id, bool) {
	id, ok := s.ids[path]
	return id, ok
}

// idCount returns the number of ids assigned so far.
func (s *State) idCount() int { return len(s.paths) }

// assignId records a brand-new identity mapping in memory. Callers
// (the writer, the loader) are responsible for persisting the
// identity record first; assignId never fails.
func (s *State) assignId(path string) Id {
	id := Id(len(s.paths))
	s.paths = append(s.paths, path)
	s.ids[path] = id
	s.hashes = append(s.hashes, HashRecord{})
	s.hashed = append(s.hashed, false)
	s.outputs = append(s.outputs, OutputSnapshot{})
	s.hasOutput = append(s.hasOutput, false)
	return id
}

// path returns the path assigned to id.
func (s *State) path(id Id) string { return s.paths[id] }

// hashRecord returns the cached HashRecord for id, and whether the
// id has ever been hashed.
func (s *State) hashRecord(id Id) (HashRecord, bool) {
	if int(id) >= len(s.hashed) || !s.hashed[id] {
		return HashRecord{}, false
	}
	return s.hashes[id], true
}

// setHashRecord updates the cached HashRecord for id.
func (s *State) setHashRecord(id Id, rec HashRecord) {
	s.hashes[id] = rec
	s.hashed[id] = true
}

// outputSnapshot returns the OutputSnapshot recorded for id, and
// whether one exists.
func (s *State) outputSnapshot(id Id) (*OutputSnapshot, bool) {
	if int(id) >= len(s.hasOutput) || !s.hasOutput[id] {
		return nil, false
	}
	return &s.outputs[id], true
}

// setOutputSnapshot records snap as the current snapshot for id. An
// empty Inputs slice clears the snapshot, per "an empty input set is
// never persisted; the snapshot is logically absent".
func (s *State) setOutputSnapshot(id Id, snap OutputSnapshot) {
	if len(snap.Inputs) == 0 {
		s.outputs[id] = OutputSnapshot{}
		s.hasOutput[id] = false
		return
	}
	s.outputs[id] = snap
	s.hasOutput[id] = true
}

// sameInputs reports whether a and b contain the same InputRecords in
// the same order, comparing ID, MTime, and Value: Size is excluded
// since it is never persisted to the snapshot record.
func sameInputs(a, b []InputRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].MTime != b[i].MTime || a[i].Value != b[i].Value {
			return false
		}
	}
	return true
}
