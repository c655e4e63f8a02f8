// Package graph declares the collaborator interfaces that package
// hashlog consumes but does not own: the build graph (edges and their
// nodes), the filesystem, and the content hasher. A build engine
// embedding hashlog implements these against its own node and edge
// types; hashlog never constructs a Node or Edge itself.
package graph

// A Node is an opaque handle for a path the build graph knows about.
// hashlog only ever reads a Node; it never mutates one.
type Node interface {
	// Path returns the node's path, used as the identity-table key.
	Path() string

	// MTime returns the node's last-known modification time, as
	// populated by a prior Stat. Only the low 32 bits are persisted
	// to the on-disk log.
	MTime() int64

	// Size returns the node's last-known size in bytes.
	Size() int64

	// Exists reports whether the node was found to exist by the most
	// recent Stat.
	Exists() bool

	// StatusKnown reports whether the node has been stat'ed at all;
	// a node that is never stat'ed is treated as dirty.
	StatusKnown() bool
}

// An Edge is a build rule: a set of inputs that produce a set of
// outputs, plus a count of trailing order-only inputs (inputs whose
// existence matters but whose content does not).
type Edge interface {
	// Inputs returns every input node, in edge-declaration order,
	// with order-only inputs as a trailing suffix.
	Inputs() []Node

	// OrderOnlyCount returns how many of the trailing elements of
	// Inputs are order-only.
	OrderOnlyCount() int

	// Outputs returns every output node of the edge.
	Outputs() []Node
}

// HashInputs returns edge's inputs with the trailing order-only
// suffix removed: the slice RecordHashes and HashesAreClean operate
// over.
func HashInputs(edge Edge) []Node {
	in := edge.Inputs()
	n := len(in) - edge.OrderOnlyCount()
	if n < 0 {
		n = 0
	}
	return in[:n]
}

// FileSystem is the build engine's filesystem abstraction, used to
// stat an input defensively when its Node has not already been
// stat'ed, per §4.4 ("caller's precondition, or call Stat
// defensively via the filesystem"). It is not used for the hash
// log's own storage, which hashlog accesses directly by path.
type FileSystem interface {
	// Stat populates mtime, size and existence for path. A
	// non-existent path is reported via exists=false with a nil
	// error, not an error return.
	Stat(path string) (mtime int64, size int64, exists bool, err error)
}

// A Hasher computes a fixed-width content hash for the file at path.
type Hasher interface {
	Hash(path string) (uint32, error)
}
