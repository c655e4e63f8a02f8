package hashlog_test

import (
	"path/filepath"
	"testing"

	"github.com/fbenkstein/ninja/hashlog"
	"github.com/fbenkstein/ninja/hashlog/graph"
)

func openTestLog(t *testing.T) (*hashlog.Log, *hashlog.State) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".ninja_hashes")
	state := hashlog.NewState()
	l, warning, err := hashlog.OpenForWrite(path, state)
	if err != nil {
		t.Fatalf("OpenForWrite: %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning opening fresh log: %q", warning)
	}
	t.Cleanup(func() { l.Close() })
	return l, state
}

// BasicInOut, from the spec's concrete scenario list.
func TestBasicInOut(t *testing.T) {
	l, _ := openTestLog(t)
	fs := newFakeFS()
	hasher := &fakeHasher{fs: fs}

	fooCC := fs.write("foo.cc", "void foo() {}", 1)
	fooH := fs.write("foo.h", "void foo();", 2)
	barH := fs.write("bar.h", "void bar();", 3)
	fooO := fs.node("foo.o")
	edge := &fakeEdge{inputs: []graph.Node{fooCC, fooH, barH}, outputs: []graph.Node{fooO}}

	clean, err := l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if clean {
		t.Fatal("want dirty before any record exists")
	}

	if err := l.RecordHashes(edge, fs, hasher); err != nil {
		t.Fatal(err)
	}
	if len(hasher.reads) != 3 {
		t.Fatalf("RecordHashes read %d files, want 3: %v", len(hasher.reads), hasher.reads)
	}

	hasher.reset()
	clean, err = l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if !clean {
		t.Fatal("want clean right after RecordHashes")
	}
	if len(hasher.reads) != 0 {
		t.Fatalf("want 0 reads, got %d", len(hasher.reads))
	}

	fs.touch("foo.cc", 4)
	fs.touch("bar.h", 5)
	hasher.reset()
	clean, err = l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if !clean {
		t.Fatal("want clean after mtime bump with unchanged content")
	}
	if len(hasher.reads) != 2 {
		t.Fatalf("want exactly 2 reads, got %d: %v", len(hasher.reads), hasher.reads)
	}
}

// CheckOnlyFirst: a dirty input short-circuits before later inputs
// are read or their cached hash touched.
func TestCheckOnlyFirst(t *testing.T) {
	l, state := openTestLog(t)
	fs := newFakeFS()
	hasher := &fakeHasher{fs: fs}

	fooCC := fs.write("foo.cc", "void foo() {}", 1)
	fooH := fs.write("foo.h", "void foo();", 2)
	barH := fs.write("bar.h", "void bar();", 3)
	fooO := fs.node("foo.o")
	edge := &fakeEdge{inputs: []graph.Node{fooCC, fooH, barH}, outputs: []graph.Node{fooO}}

	if err := l.RecordHashes(edge, fs, hasher); err != nil {
		t.Fatal(err)
	}

	fs.write("foo.cc", "different content", 4)
	fs.write("foo.h", "also different", 5)

	hasher.reset()
	clean, err := l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if clean {
		t.Fatal("want dirty: foo.cc content changed")
	}
	if len(hasher.reads) != 1 || hasher.reads[0] != "foo.cc" {
		t.Fatalf("want exactly one read of foo.cc, got %v", hasher.reads)
	}

	ccID, _ := state.GetId("foo.cc")
	ccHash, ok := state.Hash(ccID)
	if !ok || ccHash.MTime != 4 {
		t.Fatalf("foo.cc's hash cache should have been refreshed to mtime 4, got %+v (ok=%v)", ccHash, ok)
	}
	hID, _ := state.GetId("foo.h")
	hHash, ok := state.Hash(hID)
	if !ok || hHash.MTime != 2 {
		t.Fatalf("foo.h's hash cache should be untouched at mtime 2, got %+v (ok=%v)", hHash, ok)
	}

	outID, _ := state.GetId("foo.o")
	snap, ok := state.Snapshot(outID)
	if !ok {
		t.Fatal("output snapshot should still exist")
	}
	for _, in := range snap.Inputs {
		if in.ID == ccID && in.MTime != 1 {
			t.Fatalf("output snapshot should be untouched, foo.cc entry has mtime %d, want 1", in.MTime)
		}
	}
}

// SameInputs: two edges sharing an input set are independent once
// recorded — re-recording one does not clean the other.
func TestSameInputs(t *testing.T) {
	l, _ := openTestLog(t)
	fs := newFakeFS()
	hasher := &fakeHasher{fs: fs}

	fooCC := fs.write("foo.cc", "void foo() {}", 1)
	barH := fs.write("bar.h", "void bar();", 2)
	out1 := fs.node("one.o")
	out2 := fs.node("two.o")
	edge1 := &fakeEdge{inputs: []graph.Node{fooCC, barH}, outputs: []graph.Node{out1}}
	edge2 := &fakeEdge{inputs: []graph.Node{fooCC, barH}, outputs: []graph.Node{out2}}

	if err := l.RecordHashes(edge1, fs, hasher); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordHashes(edge2, fs, hasher); err != nil {
		t.Fatal(err)
	}

	fs.write("bar.h", "void bar(int);", 3)

	if clean, err := l.HashesAreClean(out1, edge1, fs, hasher); err != nil || clean {
		t.Fatalf("edge1 should be dirty after bar.h changed, clean=%v err=%v", clean, err)
	}
	if clean, err := l.HashesAreClean(out2, edge2, fs, hasher); err != nil || clean {
		t.Fatalf("edge2 should be dirty after bar.h changed, clean=%v err=%v", clean, err)
	}

	if err := l.RecordHashes(edge1, fs, hasher); err != nil {
		t.Fatal(err)
	}
	if clean, err := l.HashesAreClean(out1, edge1, fs, hasher); err != nil || !clean {
		t.Fatalf("edge1 should be clean after re-recording, clean=%v err=%v", clean, err)
	}
	if clean, err := l.HashesAreClean(out2, edge2, fs, hasher); err != nil || clean {
		t.Fatalf("edge2 should still be dirty, clean=%v err=%v", clean, err)
	}
}

// RepeatedInput: a duplicated input collapses to a single snapshot
// entry, and a later mtime-only change causes exactly one rehash.
func TestRepeatedInput(t *testing.T) {
	l, state := openTestLog(t)
	fs := newFakeFS()
	hasher := &fakeHasher{fs: fs}

	fooCC := fs.write("foo.cc", "void foo() {}", 1)
	fooO := fs.node("foo.o")
	edge := &fakeEdge{inputs: []graph.Node{fooCC, fooCC}, outputs: []graph.Node{fooO}}

	if err := l.RecordHashes(edge, fs, hasher); err != nil {
		t.Fatal(err)
	}
	outID, _ := state.GetId("foo.o")
	snap, ok := state.Snapshot(outID)
	if !ok || len(snap.Inputs) != 1 {
		t.Fatalf("want exactly one snapshot entry for a repeated input, got %+v (ok=%v)", snap, ok)
	}

	fs.touch("foo.cc", 2)
	hasher.reset()
	clean, err := l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if !clean {
		t.Fatal("want clean: content unchanged")
	}
	if len(hasher.reads) != 1 {
		t.Fatalf("want exactly 1 read for the repeated input, got %d", len(hasher.reads))
	}
}

// ZeroInputEdge: an edge with no hashable inputs is vacuously clean,
// both before and after RecordHashes, and RecordHashes persists no
// snapshot for it at all.
func TestZeroInputEdge(t *testing.T) {
	l, state := openTestLog(t)
	fs := newFakeFS()
	hasher := &fakeHasher{fs: fs}

	fooO := fs.node("foo.o")
	edge := &fakeEdge{outputs: []graph.Node{fooO}}

	clean, err := l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if !clean {
		t.Fatal("want clean for a zero-input edge before RecordHashes")
	}
	if len(hasher.reads) != 0 {
		t.Fatalf("want 0 reads, got %d", len(hasher.reads))
	}

	if err := l.RecordHashes(edge, fs, hasher); err != nil {
		t.Fatal(err)
	}
	if len(hasher.reads) != 0 {
		t.Fatalf("RecordHashes on a zero-input edge should read nothing, got %d", len(hasher.reads))
	}
	outID, ok := state.GetId("foo.o")
	if !ok {
		t.Fatal("output id should still be assigned")
	}
	if _, has := state.Snapshot(outID); has {
		t.Fatal("a zero-input edge should not persist a snapshot")
	}

	hasher.reset()
	clean, err = l.HashesAreClean(fooO, edge, fs, hasher)
	if err != nil {
		t.Fatal(err)
	}
	if !clean {
		t.Fatal("want clean for a zero-input edge after RecordHashes")
	}
	if len(hasher.reads) != 0 {
		t.Fatalf("want 0 reads, got %d", len(hasher.reads))
	}
}

// Add/RemoveInput: adding an input flips clean to dirty until
// re-recorded; removing one does not.
func TestAddRemoveInput(t *testing.T) {
	l, _ := openTestLog(t)
	fs := newFakeFS()
	hasher := &fakeHasher{fs: fs}

	fooCC := fs.write("foo.cc", "void foo() {}", 1)
	fooH := fs.write("foo.h", "void foo();", 2)
	fooO := fs.node("foo.o")

	edge := &fakeEdge{inputs: []graph.Node{fooCC}, outputs: []graph.Node{fooO}}
	if err := l.RecordHashes(edge, fs, hasher); err != nil {
		t.Fatal(err)
	}
	if clean, err := l.HashesAreClean(fooO, edge, fs, hasher); err != nil || !clean {
		t.Fatalf("want clean, clean=%v err=%v", clean, err)
	}

	grown := &fakeEdge{inputs: []graph.Node{fooCC, fooH}, outputs: []graph.Node{fooO}}
	if clean, err := l.HashesAreClean(fooO, grown, fs, hasher); err != nil || clean {
		t.Fatalf("adding an input should flip to dirty, clean=%v err=%v", clean, err)
	}
	if err := l.RecordHashes(grown, fs, hasher); err != nil {
		t.Fatal(err)
	}
	if clean, err := l.HashesAreClean(fooO, grown, fs, hasher); err != nil || !clean {
		t.Fatalf("want clean after re-recording with the new input, clean=%v err=%v", clean, err)
	}

	shrunk := &fakeEdge{inputs: []graph.Node{fooCC}, outputs: []graph.Node{fooO}}
	if clean, err := l.HashesAreClean(fooO, shrunk, fs, hasher); err != nil || !clean {
		t.Fatalf("removing an input should not flip to dirty, clean=%v err=%v", clean, err)
	}
}
