package hashlog

import (
	"github.com/fbenkstein/ninja/hashlog/errors"
	"github.com/fbenkstein/ninja/hashlog/graph"
)

// HashesAreClean reports whether output is up-to-date with respect
// to edge's current, non-order-only inputs (C7). It trusts the
// inputs' Node.MTime/Exists/StatusKnown as already populated by the
// caller's own Stat pass; it only reaches for hasher when an mtime
// has moved, and stops at the first input it finds dirty — later
// inputs are neither read nor hashed.
func (l *Log) HashesAreClean(output graph.Node, edge graph.Edge, fs graph.FileSystem, hasher graph.Hasher) (clean bool, err error) {
	hashInputs := graph.HashInputs(edge)
	if len(hashInputs) == 0 {
		return true, nil
	}

	outID, ok := l.state.GetId(output.Path())
	if !ok {
		return false, nil
	}
	snap, has := l.state.outputSnapshot(outID)
	if !has {
		return false, nil
	}

	shouldRewrite := false
	for _, n := range hashInputs {
		if !n.Exists() || !n.StatusKnown() {
			return false, nil
		}
		id, ok := l.state.GetId(n.Path())
		if !ok {
			return false, nil
		}
		rec, found := snap.find(id)
		if !found {
			return false, nil
		}
		if int32(n.MTime()) == rec.MTime {
			continue
		}
		value, herr := hasher.Hash(n.Path())
		if herr != nil {
			return false, errors.E(errors.Hasher, herr)
		}
		l.state.setHashRecord(id, HashRecord{MTime: int32(n.MTime()), Size: n.Size(), Value: HashValue(value)})
		if HashValue(value) != rec.Value {
			return false, nil
		}
		rec.MTime = int32(n.MTime())
		shouldRewrite = true
	}

	if shouldRewrite {
		buf, err := encodeSnapshot(outID, snap.Inputs)
		if err != nil {
			return true, err
		}
		if len(buf) > l.maxRecordSize+4 {
			return true, errors.E(errors.Oversize, "snapshot record")
		}
		if err := l.write(buf); err != nil {
			return true, err
		}
	}
	return true, nil
}
