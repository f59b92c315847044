package sigtools

import (
	"testing"

	"gosynth/internal/rtlil"
)

func testWire(name rtlil.Id, width int) *rtlil.Wire {
	w := rtlil.NewWire(name)
	w.Width = width
	return w
}

func TestSigMapCanonicalizesConnections(t *testing.T) {
	module := rtlil.NewModule("\\top")
	a := module.NewWireInModule(4, "\\a")
	b := module.NewWireInModule(4, "\\b")
	c := module.NewWireInModule(4, "\\c")
	module.Connections = append(module.Connections,
		rtlil.SigSig{First: rtlil.SigFromWire(a), Second: rtlil.SigFromWire(b)},
		rtlil.SigSig{First: rtlil.SigFromWire(b), Second: rtlil.SigFromWire(c)})

	m := NewSigMap(module)
	for _, conn := range module.Connections {
		lhs := m.Map(conn.First)
		rhs := m.Map(conn.Second)
		if !lhs.Equal(rhs) {
			t.Fatalf("connection sides disagree after mapping: %s vs %s", lhs.String(), rhs.String())
		}
	}
	if !m.Map(rtlil.SigFromWire(a)).Equal(rtlil.SigFromWire(c)) {
		t.Fatalf("chained connections must share a representative")
	}
}

func TestSigMapPrefersConstants(t *testing.T) {
	module := rtlil.NewModule("\\top")
	a := module.NewWireInModule(1, "\\a")
	module.Connections = append(module.Connections,
		rtlil.SigSig{First: rtlil.SigFromWire(a), Second: rtlil.SigFromInt(1, 1)})

	m := NewSigMap(module)
	if !m.Map(rtlil.SigFromWire(a)).Equal(rtlil.SigFromInt(1, 1)) {
		t.Fatalf("constant must become the representative")
	}
}

func TestSigMapPartialOverlap(t *testing.T) {
	module := rtlil.NewModule("\\top")
	a := module.NewWireInModule(4, "\\a")
	b := module.NewWireInModule(2, "\\b")
	module.Connections = append(module.Connections,
		rtlil.SigSig{First: rtlil.SigFromWireRange(a, 2, 1), Second: rtlil.SigFromWire(b)})

	m := NewSigMap(module)
	got := m.Map(rtlil.SigFromWire(a))

	want := rtlil.SigFromWireRange(a, 1, 0)
	want.Append(rtlil.SigFromWire(b))
	want.Append(rtlil.SigFromWireRange(a, 1, 3))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want.String(), got.String())
	}
}

func TestSigMapDirectionalAdd(t *testing.T) {
	m := NewSigMap(nil)
	a := testWire("\\a", 1)
	b := testWire("\\b", 1)
	// direction matters: the right-hand side becomes the representative
	m.Add(rtlil.SigFromWire(b), rtlil.SigFromWire(a))
	if !m.Map(rtlil.SigFromWire(b)).Equal(rtlil.SigFromWire(a)) {
		t.Fatalf("rhs of Add must win")
	}
}

func TestSigPool(t *testing.T) {
	a := testWire("\\a", 4)
	b := testWire("\\b", 4)

	pool := NewSigPool()
	pool.Add(rtlil.SigFromWire(a))
	pool.Add(rtlil.SigFromWireRange(b, 2, 0))

	if pool.Size() != 6 {
		t.Fatalf("expected 6 bits, got %d", pool.Size())
	}
	if !pool.CheckAll(rtlil.SigFromWire(a)) {
		t.Fatalf("all bits of a must be present")
	}
	if pool.CheckAll(rtlil.SigFromWire(b)) || !pool.CheckAny(rtlil.SigFromWire(b)) {
		t.Fatalf("only the low bits of b are present")
	}

	pool.Del(rtlil.SigFromWireRange(a, 2, 0))
	if pool.Size() != 4 {
		t.Fatalf("expected 4 bits after deletion, got %d", pool.Size())
	}

	exported := pool.ExportAll()
	if exported.Width != 4 {
		t.Fatalf("export width wrong: %d", exported.Width)
	}
	reexported := pool.ExportAll()
	if !exported.Equal(reexported) {
		t.Fatalf("export must be deterministic")
	}
}

func TestSigSet(t *testing.T) {
	a := testWire("\\a", 2)
	set := NewSigSet[string]()
	set.Insert(rtlil.SigFromWire(a), "first")
	set.Insert(rtlil.SigFromWireRange(a, 1, 0), "second")

	if !set.Has(rtlil.SigFromWireRange(a, 1, 0)) {
		t.Fatalf("bit must have payloads")
	}
	found := set.Find(rtlil.SigFromWireRange(a, 1, 0))
	if len(found) != 2 || found[0] != "first" || found[1] != "second" {
		t.Fatalf("expected [first second], got %v", found)
	}
	found = set.Find(rtlil.SigFromWireRange(a, 1, 1))
	if len(found) != 1 || found[0] != "first" {
		t.Fatalf("expected [first], got %v", found)
	}

	set.EraseSig(rtlil.SigFromWireRange(a, 1, 0))
	if set.Has(rtlil.SigFromWireRange(a, 1, 0)) {
		t.Fatalf("erased bit must have no payloads")
	}
}
