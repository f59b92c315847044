// Package sigtools provides the signal indexing helpers shared by passes:
// SigMap canonicalizes equivalent signals, SigPool collects bit sets and
// SigSet maps bits to fan-in/fan-out payloads.
package sigtools

import (
	"sort"

	"gosynth/internal/rtlil"
)

// SigBit identifies a single bit: a wire bit or a literal state.
type SigBit struct {
	Wire   *rtlil.Wire
	Offset int
	State  rtlil.State
}

// BitsOf expands a signal into its bits.
func BitsOf(sig rtlil.SigSpec) []SigBit {
	bits := make([]SigBit, 0, sig.Width)
	for _, chunk := range sig.Chunks {
		if chunk.Wire != nil {
			for i := 0; i < chunk.Width; i++ {
				bits = append(bits, SigBit{Wire: chunk.Wire, Offset: chunk.Offset + i})
			}
		} else {
			for _, b := range chunk.Data.Bits {
				bits = append(bits, SigBit{State: b})
			}
		}
	}
	return bits
}

// Sig converts a bit back into a one-bit signal.
func (b SigBit) Sig() rtlil.SigSpec {
	if b.Wire != nil {
		return rtlil.SigFromWireRange(b.Wire, 1, b.Offset)
	}
	return rtlil.SigFromState(b.State, 1)
}

// Less orders bits with literals first, then by wire name and offset.
func (b SigBit) Less(other SigBit) bool {
	if (b.Wire == nil) != (other.Wire == nil) {
		return b.Wire == nil
	}
	if b.Wire == nil {
		return b.State < other.State
	}
	if b.Wire.Name != other.Wire.Name {
		return b.Wire.Name < other.Wire.Name
	}
	return b.Offset < other.Offset
}

// SigFromBits concatenates bits into a canonical signal.
func SigFromBits(bits []SigBit) rtlil.SigSpec {
	var sig rtlil.SigSpec
	for _, b := range bits {
		sig.Append(b.Sig())
	}
	sig.Optimize()
	return sig
}

// SigMap tracks bit equivalence classes built from module connections.
// Apply rewrites each bit to the representative of its class. Representative
// choice follows the direction of Add: the right-hand side of a connection
// wins, with constants preferred over wires unconditionally.
type SigMap struct {
	parent map[SigBit]SigBit
}

// NewSigMap returns a map primed from the module's connections (nil for an
// empty map).
func NewSigMap(module *rtlil.Module) *SigMap {
	m := &SigMap{parent: map[SigBit]SigBit{}}
	if module != nil {
		m.Set(module)
	}
	return m
}

// Clear resets the map.
func (m *SigMap) Clear() {
	m.parent = map[SigBit]SigBit{}
}

// Set rebuilds the map from the module's connections in insertion order.
// Later unions may override earlier representatives.
func (m *SigMap) Set(module *rtlil.Module) {
	m.Clear()
	for _, conn := range module.Connections {
		m.Add(conn.First, conn.Second)
	}
}

// Add unions the bits of from and to pairwise, making to's representative
// the class representative.
func (m *SigMap) Add(from, to rtlil.SigSpec) {
	fromBits := BitsOf(from)
	toBits := BitsOf(to)
	n := len(fromBits)
	if len(toBits) < n {
		n = len(toBits)
	}
	for i := 0; i < n; i++ {
		rf := m.find(fromBits[i])
		rt := m.find(toBits[i])
		if rf == rt {
			continue
		}
		switch {
		case rf.Wire == nil && rt.Wire == nil:
			// two constants; nothing to unify
		case rf.Wire == nil:
			m.parent[rt] = rf
		default:
			m.parent[rf] = rt
		}
	}
}

func (m *SigMap) find(b SigBit) SigBit {
	root := b
	for {
		next, ok := m.parent[root]
		if !ok {
			break
		}
		root = next
	}
	for b != root {
		next := m.parent[b]
		m.parent[b] = root
		b = next
	}
	return root
}

// Apply rewrites every bit of sig to its representative, in place.
func (m *SigMap) Apply(sig *rtlil.SigSpec) {
	*sig = m.Map(*sig)
}

// Map returns the canonical form of sig.
func (m *SigMap) Map(sig rtlil.SigSpec) rtlil.SigSpec {
	var out rtlil.SigSpec
	for _, b := range BitsOf(sig) {
		out.Append(m.find(b).Sig())
	}
	out.Optimize()
	return out
}

// SigPool is a set of single wire bits. Literal bits are ignored.
type SigPool struct {
	bits map[SigBit]bool
}

// NewSigPool returns an empty pool.
func NewSigPool() *SigPool {
	return &SigPool{bits: map[SigBit]bool{}}
}

// Add inserts every wire bit of sig.
func (p *SigPool) Add(sig rtlil.SigSpec) {
	for _, b := range BitsOf(sig) {
		if b.Wire == nil {
			continue
		}
		p.bits[b] = true
	}
}

// AddPool inserts every bit of another pool.
func (p *SigPool) AddPool(other *SigPool) {
	for b := range other.bits {
		p.bits[b] = true
	}
}

// Del removes every bit of sig.
func (p *SigPool) Del(sig rtlil.SigSpec) {
	for _, b := range BitsOf(sig) {
		delete(p.bits, b)
	}
}

// DelPool removes every bit of another pool.
func (p *SigPool) DelPool(other *SigPool) {
	for b := range other.bits {
		delete(p.bits, b)
	}
}

// CheckAny reports whether any bit of sig is in the pool.
func (p *SigPool) CheckAny(sig rtlil.SigSpec) bool {
	for _, b := range BitsOf(sig) {
		if p.bits[b] {
			return true
		}
	}
	return false
}

// CheckAll reports whether every bit of sig is in the pool.
func (p *SigPool) CheckAll(sig rtlil.SigSpec) bool {
	for _, b := range BitsOf(sig) {
		if !p.bits[b] {
			return false
		}
	}
	return true
}

// Size returns the number of bits in the pool.
func (p *SigPool) Size() int {
	return len(p.bits)
}

// Bits returns the pool's bits in canonical order.
func (p *SigPool) Bits() []SigBit {
	bits := make([]SigBit, 0, len(p.bits))
	for b := range p.bits {
		bits = append(bits, b)
	}
	sort.Slice(bits, func(i, j int) bool { return bits[i].Less(bits[j]) })
	return bits
}

// ExportAll returns the pool as a sorted signal.
func (p *SigPool) ExportAll() rtlil.SigSpec {
	return SigFromBits(p.Bits())
}

// SigSet is a multimap from single bits to payloads of type T.
type SigSet[T comparable] struct {
	entries map[SigBit]map[T]int
	stamp   int
}

// NewSigSet returns an empty set.
func NewSigSet[T comparable]() *SigSet[T] {
	return &SigSet[T]{entries: map[SigBit]map[T]int{}}
}

// Clear resets the set.
func (s *SigSet[T]) Clear() {
	s.entries = map[SigBit]map[T]int{}
	s.stamp = 0
}

// Insert records data for every bit of sig.
func (s *SigSet[T]) Insert(sig rtlil.SigSpec, data T) {
	for _, b := range BitsOf(sig) {
		set, ok := s.entries[b]
		if !ok {
			set = map[T]int{}
			s.entries[b] = set
		}
		if _, ok := set[data]; !ok {
			set[data] = s.stamp
			s.stamp++
		}
	}
}

// EraseSig drops all payloads of every bit of sig.
func (s *SigSet[T]) EraseSig(sig rtlil.SigSpec) {
	for _, b := range BitsOf(sig) {
		delete(s.entries, b)
	}
}

// Has reports whether any bit of sig carries a payload.
func (s *SigSet[T]) Has(sig rtlil.SigSpec) bool {
	for _, b := range BitsOf(sig) {
		if len(s.entries[b]) > 0 {
			return true
		}
	}
	return false
}

// Find returns the union of the payloads of all bits of sig, in insertion
// order.
func (s *SigSet[T]) Find(sig rtlil.SigSpec) []T {
	type entry struct {
		data  T
		stamp int
	}
	var found []entry
	seen := map[T]bool{}
	for _, b := range BitsOf(sig) {
		for data, stamp := range s.entries[b] {
			if !seen[data] {
				seen[data] = true
				found = append(found, entry{data, stamp})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].stamp < found[j].stamp })
	out := make([]T, len(found))
	for i, e := range found {
		out[i] = e.data
	}
	return out
}
