package hashlog_test

import (
	"fmt"
	"hash/fnv"

	"github.com/fbenkstein/ninja/hashlog/graph"
)

// fakeFile is one file in a fakeFS: content plus an explicit,
// test-controlled mtime (an integer clock, never wall time).
type fakeFile struct {
	content []byte
	mtime   int64
}

// fakeFS is an in-memory graph.FileSystem with an explicit integer
// clock, used by the scenario tests in place of a real disk.
type fakeFS struct {
	files map[string]*fakeFile
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]*fakeFile)}
}

// write creates or overwrites path with content at mtime, returning
// a live node view onto it.
func (fs *fakeFS) write(path, content string, mtime int64) *fakeNode {
	fs.files[path] = &fakeFile{content: []byte(content), mtime: mtime}
	return fs.node(path)
}

// touch bumps path's mtime without changing its content.
func (fs *fakeFS) touch(path string, mtime int64) {
	fs.files[path].mtime = mtime
}

// node returns a live view of path: its Node methods always reflect
// fs's current state, so bumping a file's mtime via touch is visible
// through every fakeNode referencing that path without re-creating
// them.
func (fs *fakeFS) node(path string) *fakeNode {
	return &fakeNode{fs: fs, path: path, statusKnown: true}
}

func (fs *fakeFS) Stat(path string) (mtime int64, size int64, exists bool, err error) {
	f, ok := fs.files[path]
	if !ok {
		return 0, 0, false, nil
	}
	return f.mtime, int64(len(f.content)), true, nil
}

// fakeNode is a graph.Node backed by a fakeFS entry.
type fakeNode struct {
	fs          *fakeFS
	path        string
	statusKnown bool
}

func (n *fakeNode) Path() string { return n.path }

func (n *fakeNode) MTime() int64 {
	if f, ok := n.fs.files[n.path]; ok {
		return f.mtime
	}
	return 0
}

func (n *fakeNode) Size() int64 {
	if f, ok := n.fs.files[n.path]; ok {
		return int64(len(f.content))
	}
	return 0
}

func (n *fakeNode) Exists() bool {
	_, ok := n.fs.files[n.path]
	return ok
}

func (n *fakeNode) StatusKnown() bool { return n.statusKnown }

// fakeEdge is a graph.Edge with an explicit order-only suffix count.
type fakeEdge struct {
	inputs    []graph.Node
	orderOnly int
	outputs   []graph.Node
}

func (e *fakeEdge) Inputs() []graph.Node       { return e.inputs }
func (e *fakeEdge) OrderOnlyCount() int        { return e.orderOnly }
func (e *fakeEdge) Outputs() []graph.Node      { return e.outputs }

// fakeHasher hashes a fakeFS file's content with fnv32a, counting
// every call so tests can assert exact read counts per §8.
type fakeHasher struct {
	fs    *fakeFS
	reads []string
}

func (h *fakeHasher) Hash(path string) (uint32, error) {
	h.reads = append(h.reads, path)
	f, ok := h.fs.files[path]
	if !ok {
		return 0, fmt.Errorf("fakeHasher: no such file: %s", path)
	}
	sum := fnv.New32a()
	sum.Write(f.content)
	return sum.Sum32(), nil
}

func (h *fakeHasher) reset() { h.reads = nil }
