package rtlil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testWire(name Id, width int) *Wire {
	w := NewWire(name)
	w.Width = width
	return w
}

func checkWidth(t *testing.T, sig SigSpec) {
	t.Helper()
	w := 0
	for _, c := range sig.Chunks {
		w += c.Width
	}
	if w != sig.Width {
		t.Fatalf("width invariant broken: cached %d, chunks sum to %d", sig.Width, w)
	}
}

func TestAppendAndWidth(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 2)

	var sig SigSpec
	sig.Append(SigFromWire(a))
	sig.Append(SigFromWire(b))
	sig.Append(SigFromInt(5, 3))

	if sig.Width != 9 {
		t.Fatalf("expected width 9, got %d", sig.Width)
	}
	checkWidth(t, sig)
}

func TestOptimizeMergesAdjacentWireChunks(t *testing.T) {
	a := testWire("\\a", 8)

	var sig SigSpec
	sig.Append(SigFromWireRange(a, 4, 0))
	sig.Append(SigFromWireRange(a, 4, 4))
	sig.Optimize()

	if len(sig.Chunks) != 1 {
		t.Fatalf("expected one merged chunk, got %d", len(sig.Chunks))
	}
	if sig.Chunks[0].Offset != 0 || sig.Chunks[0].Width != 8 {
		t.Fatalf("bad merged chunk: offset=%d width=%d", sig.Chunks[0].Offset, sig.Chunks[0].Width)
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	a := testWire("\\a", 8)

	var sig SigSpec
	sig.Append(SigFromWireRange(a, 2, 0))
	sig.Append(SigFromWireRange(a, 2, 2))
	sig.Append(SigFromInt(1, 1))
	sig.Append(SigFromInt(0, 1))
	sig.Append(SigFromWireRange(a, 1, 6))

	once := sig.Copy()
	once.Optimize()
	twice := once.Copy()
	twice.Optimize()

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("optimize not idempotent:\n%s", diff)
	}
}

func TestOptimizeDropsZeroWidthChunks(t *testing.T) {
	a := testWire("\\a", 4)
	var sig SigSpec
	sig.Append(SigFromWireRange(a, 2, 0))
	sig.Append(SigFromWireRange(a, 0, 2))
	sig.Append(SigFromWireRange(a, 2, 2))
	sig.Optimize()
	if len(sig.Chunks) != 1 || sig.Width != 4 {
		t.Fatalf("expected single 4-bit chunk, got %d chunks width %d", len(sig.Chunks), sig.Width)
	}
}

func TestExtractAppendRoundTrip(t *testing.T) {
	a := testWire("\\a", 5)
	b := testWire("\\b", 3)

	var sig SigSpec
	sig.Append(SigFromWire(a))
	sig.Append(SigFromInt(5, 4))
	sig.Append(SigFromWire(b))

	for o := 0; o <= sig.Width; o++ {
		for l := 0; o+l <= sig.Width; l++ {
			rebuilt := sig.Extract(0, o)
			rebuilt.Append(sig.Extract(o, l))
			rebuilt.Append(sig.Extract(o+l, sig.Width-o-l))
			if !rebuilt.Equal(sig) {
				t.Fatalf("round trip failed for offset=%d length=%d", o, l)
			}
		}
	}
}

func TestReplaceIdentity(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 4)

	var sig SigSpec
	sig.Append(SigFromWire(a))
	sig.Append(SigFromInt(9, 4))
	sig.Append(SigFromWireRange(b, 2, 1))

	var pattern SigSpec
	pattern.Append(SigFromWireRange(a, 2, 1))
	pattern.Append(SigFromWire(b))

	replaced := sig.Copy()
	replaced.Replace(pattern, pattern)
	if !replaced.Equal(sig) {
		t.Fatalf("replace with identical pattern changed signal: %s != %s",
			replaced.String(), sig.String())
	}
}

func TestReplaceSubstitutes(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 4)

	sig := SigFromWire(a)
	sig.Replace(SigFromWireRange(a, 2, 1), SigFromWireRange(b, 2, 0))

	want := SigFromWireRange(a, 1, 0)
	want.Append(SigFromWireRange(b, 2, 0))
	want.Append(SigFromWireRange(a, 1, 3))
	if !sig.Equal(want) {
		t.Fatalf("expected %s, got %s", want.String(), sig.String())
	}
}

func TestReplaceIntoOther(t *testing.T) {
	a := testWire("\\a", 2)
	c := testWire("\\c", 2)

	sig := SigFromWire(a)
	other := SigFromWire(c)
	sig.ReplaceInto(SigFromWireRange(a, 1, 1), SigFromInt(1, 1), &other)

	if !sig.Equal(SigFromWire(a)) {
		t.Fatalf("matching signal must stay untouched")
	}
	want := SigFromWireRange(c, 1, 0)
	want.Append(SigFromInt(1, 1))
	if !other.Equal(want) {
		t.Fatalf("expected %s, got %s", want.String(), other.String())
	}
}

func TestRemovePattern(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 4)

	var sig SigSpec
	sig.Append(SigFromWire(a))
	sig.Append(SigFromWire(b))
	sig.Remove(SigFromWireRange(a, 2, 1))

	if sig.Width != 6 {
		t.Fatalf("expected width 6 after removal, got %d", sig.Width)
	}
	want := SigFromWireRange(a, 1, 0)
	want.Append(SigFromWireRange(a, 1, 3))
	want.Append(SigFromWire(b))
	if !sig.Equal(want) {
		t.Fatalf("expected %s, got %s", want.String(), sig.String())
	}
}

func TestExtractPattern(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 4)

	var sig SigSpec
	sig.Append(SigFromWire(a))
	sig.Append(SigFromWire(b))

	got := sig.ExtractPattern(SigFromWireRange(b, 2, 1), nil)
	if !got.Equal(SigFromWireRange(b, 2, 1)) {
		t.Fatalf("expected b[2:1], got %s", got.String())
	}

	// positional correspondence against another signal
	c := testWire("\\c", 8)
	other := SigFromWire(c)
	got = sig.ExtractPattern(SigFromWireRange(a, 2, 0), &other)
	if !got.Equal(SigFromWireRange(c, 2, 0)) {
		t.Fatalf("expected c[1:0], got %s", got.String())
	}
}

func TestSortAndUnify(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 4)

	var sig SigSpec
	sig.Append(SigFromWireRange(b, 2, 0))
	sig.Append(SigFromWireRange(a, 2, 0))
	sig.Append(SigFromWireRange(b, 2, 0))
	sig.SortAndUnify()

	want := SigFromWireRange(a, 2, 0)
	want.Append(SigFromWireRange(b, 2, 0))
	if !sig.Equal(want) {
		t.Fatalf("expected %s, got %s", want.String(), sig.String())
	}
}

func TestCombineDisjointCommutes(t *testing.T) {
	w := testWire("\\w", 2)

	a := SigFromState(Sz, 2)
	a.ReplaceAt(0, SigFromWireRange(w, 1, 0))

	b := SigFromState(Sz, 2)
	b.ReplaceAt(1, SigFromInt(1, 1))

	left := a.Copy()
	right := b.Copy()
	okLeft := left.Combine(b, Sz, false)
	okRight := right.Combine(a, Sz, false)

	if !okLeft || !okRight {
		t.Fatalf("disjoint combine must not collide")
	}
	if !left.Equal(right) {
		t.Fatalf("combine not commutative: %s vs %s", left.String(), right.String())
	}
}

func TestCombineCollision(t *testing.T) {
	a := SigFromInt(1, 1)
	b := SigFromInt(0, 1)
	if a.Combine(b, Sz, false) {
		t.Fatalf("overlapping combine must report a collision")
	}
	if !a.Equal(SigFromState(Sx, 1)) {
		t.Fatalf("collision without override must write x, got %s", a.String())
	}

	a = SigFromInt(1, 1)
	if a.Combine(b, Sz, true) {
		t.Fatalf("collision must be reported even with override")
	}
	if !a.Equal(SigFromInt(0, 1)) {
		t.Fatalf("override must take the other value, got %s", a.String())
	}
}

func TestExtend(t *testing.T) {
	sig := SigFromInt(5, 4)
	sig.Extend(6, false)
	if !sig.Equal(SigFromInt(5, 6)) {
		t.Fatalf("zero extension failed: %s", sig.String())
	}

	sig = SigFromConst(Const{Bits: []State{S1, S1}})
	sig.Extend(4, true)
	if !sig.Equal(SigFromConst(Const{Bits: []State{S1, S1, S1, S1}})) {
		t.Fatalf("sign extension failed: %s", sig.String())
	}

	sig = SigFromState(Sx, 2)
	sig.Extend(4, false)
	want := SigFromState(Sx, 2)
	want.Append(SigFromState(S0, 2))
	if !sig.Equal(want) {
		t.Fatalf("unsigned x-extension must pad with zero, got %s", sig.String())
	}

	sig = SigFromInt(15, 4)
	sig.Extend(2, false)
	if !sig.Equal(SigFromInt(3, 2)) {
		t.Fatalf("truncation failed: %s", sig.String())
	}
}

func TestPredicates(t *testing.T) {
	a := testWire("\\a", 2)

	sig := SigFromInt(2, 2)
	if !sig.IsFullyConst() || !sig.IsFullyDef() || sig.IsFullyUndef() {
		t.Fatalf("bad predicates on defined constant")
	}
	sig = SigFromState(Sx, 2)
	if !sig.IsFullyUndef() || sig.IsFullyDef() {
		t.Fatalf("bad predicates on undefined constant")
	}
	sig = SigFromWire(a)
	if sig.IsFullyConst() {
		t.Fatalf("wire-backed signal is not constant")
	}
	sig = SigFromState(Sm, 1)
	if !sig.HasMarkedBits() {
		t.Fatalf("marked bit not detected")
	}
}

func TestEqualityIgnoresChunkSpelling(t *testing.T) {
	a := testWire("\\a", 4)

	var split SigSpec
	split.Append(SigFromWireRange(a, 2, 0))
	split.Append(SigFromWireRange(a, 2, 2))

	if !split.Equal(SigFromWire(a)) {
		t.Fatalf("equivalent spellings must compare equal")
	}
	if split.Less(SigFromWire(a)) || SigFromWire(a).Less(split) {
		t.Fatalf("equivalent spellings must not order before each other")
	}
}

func TestParseSig(t *testing.T) {
	module := NewModule("\\top")
	module.NewWireInModule(8, "\\data")

	sig, err := ParseSig(module, "data")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sig.Width != 8 {
		t.Fatalf("expected whole wire, got width %d", sig.Width)
	}

	sig, err = ParseSig(module, "data[3]")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !sig.Equal(SigFromWireRange(module.Wires["\\data"], 1, 3)) {
		t.Fatalf("bad single-bit parse: %s", sig.String())
	}

	sig, err = ParseSig(module, "data[6:2]")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !sig.Equal(SigFromWireRange(module.Wires["\\data"], 5, 2)) {
		t.Fatalf("bad range parse: %s", sig.String())
	}

	sig, err = ParseSig(module, "4'b1010, data[0]")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sig.Width != 5 {
		t.Fatalf("expected width 5, got %d", sig.Width)
	}

	if _, err = ParseSig(module, "nosuchwire"); err == nil {
		t.Fatalf("expected error for unknown wire")
	}
}
