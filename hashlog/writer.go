package hashlog

import (
	"sort"

	"github.com/fbenkstein/ninja/hashlog/errors"
	"github.com/fbenkstein/ninja/hashlog/graph"
)

// RecordHashes persists the input hashes that produced edge's
// outputs (C4/C6). It hashes every non-order-only input via the
// external hasher, skipping any whose mtime matches its cached
// HashRecord, then writes one snapshot record per output whose
// input set actually changed.
func (l *Log) RecordHashes(edge graph.Edge, fs graph.FileSystem, hasher graph.Hasher) error {
	inputs := graph.HashInputs(edge)

	byID := make(map[Id]InputRecord, len(inputs))
	order := make([]Id, 0, len(inputs))
	for _, n := range inputs {
		id, rec, err := l.computeHash(n, fs, hasher)
		if err != nil {
			return err
		}
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = InputRecord{ID: id, HashRecord: rec}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	newInputs := make([]InputRecord, len(order))
	for i, id := range order {
		newInputs[i] = byID[id]
	}

	for _, out := range edge.Outputs() {
		outID, err := l.GetOrCreateId(out.Path())
		if err != nil {
			return err
		}
		existing, has := l.state.outputSnapshot(outID)
		if has && sameInputs(existing.Inputs, newInputs) {
			continue
		}
		if len(newInputs) == 0 {
			l.state.setOutputSnapshot(outID, OutputSnapshot{})
			continue
		}
		buf, err := encodeSnapshot(outID, newInputs)
		if err != nil {
			return err
		}
		if len(buf) > l.maxRecordSize+4 {
			return errors.E(errors.Oversize, "snapshot record")
		}
		if err := l.write(buf); err != nil {
			return err
		}
		l.state.setOutputSnapshot(outID, OutputSnapshot{Inputs: append([]InputRecord(nil), newInputs...)})
	}
	return nil
}

// computeHash returns node's id (allocating one if needed) and its
// current HashRecord, rehashing via hasher only if node's mtime
// differs from the cached one (C3's ComputeHash).
func (l *Log) computeHash(node graph.Node, fs graph.FileSystem, hasher graph.Hasher) (Id, HashRecord, error) {
	mtime, size := node.MTime(), node.Size()
	if !node.StatusKnown() {
		var err error
		var exists bool
		mtime, size, exists, err = fs.Stat(node.Path())
		if err != nil {
			return NoID, HashRecord{}, errors.E(errors.ReadIO, "stat input", err)
		}
		if !exists {
			return NoID, HashRecord{}, errors.E(errors.ReadIO, "input does not exist: "+node.Path())
		}
	}

	id, err := l.GetOrCreateId(node.Path())
	if err != nil {
		return NoID, HashRecord{}, err
	}

	if cached, ok := l.state.hashRecord(id); ok && cached.MTime == int32(mtime) {
		return id, cached, nil
	}

	value, herr := hasher.Hash(node.Path())
	if herr != nil {
		return NoID, HashRecord{}, errors.E(errors.Hasher, herr)
	}
	rec := HashRecord{MTime: int32(mtime), Size: size, Value: HashValue(value)}
	l.state.setHashRecord(id, rec)
	return id, rec, nil
}
