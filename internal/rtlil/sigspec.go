package rtlil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SigChunk is a contiguous slice of a signal: either a range of a wire or a
// literal constant. Wire-backed chunks keep Data empty; literal chunks keep
// Wire nil and Offset zero.
type SigChunk struct {
	Wire   *Wire
	Offset int
	Width  int
	Data   Const
}

// ChunkFromConst wraps a constant.
func ChunkFromConst(data Const) SigChunk {
	return SigChunk{Data: data, Width: len(data.Bits)}
}

// ChunkFromWire references width bits of wire starting at offset. A negative
// width selects the whole wire.
func ChunkFromWire(wire *Wire, width, offset int) SigChunk {
	if width < 0 {
		width = wire.Width
	}
	return SigChunk{Wire: wire, Width: width, Offset: offset}
}

// ChunkFromState fills a literal chunk with a single state.
func ChunkFromState(bit State, width int) SigChunk {
	return ChunkFromConst(NewConstState(bit, width))
}

// Extract returns a sub-slice of the chunk.
func (c SigChunk) Extract(offset, length int) SigChunk {
	var ret SigChunk
	if c.Wire != nil {
		ret.Wire = c.Wire
		ret.Offset = c.Offset + offset
		ret.Width = length
	} else {
		ret.Data.Bits = append([]State(nil), c.Data.Bits[offset:offset+length]...)
		ret.Width = length
	}
	return ret
}

// Equal reports structural equality of two chunks.
func (c SigChunk) Equal(other SigChunk) bool {
	if c.Wire != other.Wire || c.Width != other.Width || c.Offset != other.Offset {
		return false
	}
	return c.Data.Equal(other.Data)
}

// Less is the total ordering used by canonical comparison: wire identity by
// name with nil first, then offset, width and literal bits.
func (c SigChunk) Less(other SigChunk) bool {
	if c.Wire != other.Wire {
		if c.Wire == nil || other.Wire == nil {
			return c.Wire == nil
		}
		if c.Wire.Name != other.Wire.Name {
			return c.Wire.Name < other.Wire.Name
		}
	}
	if c.Offset != other.Offset {
		return c.Offset < other.Offset
	}
	if c.Width != other.Width {
		return c.Width < other.Width
	}
	return c.Data.Less(other.Data)
}

// compareChunks is the sort predicate of Sort and SortAndUnify.
func compareChunks(a, b SigChunk) bool {
	return a.Less(b)
}

// SigSpec is an ordered concatenation of chunks with a cached total width.
type SigSpec struct {
	Chunks []SigChunk
	Width  int
}

// SigSig is a connection pair: lhs driven by rhs.
type SigSig struct {
	First  SigSpec
	Second SigSpec
}

// SigFromConst wraps a constant in a one-chunk signal.
func SigFromConst(data Const) SigSpec {
	s := SigSpec{Chunks: []SigChunk{ChunkFromConst(data)}}
	s.Width = s.Chunks[0].Width
	return s
}

// SigFromChunk wraps a single chunk.
func SigFromChunk(chunk SigChunk) SigSpec {
	return SigSpec{Chunks: []SigChunk{chunk}, Width: chunk.Width}
}

// SigFromWire references a whole wire.
func SigFromWire(wire *Wire) SigSpec {
	return SigFromChunk(ChunkFromWire(wire, -1, 0))
}

// SigFromWireRange references width bits of wire starting at offset.
func SigFromWireRange(wire *Wire, width, offset int) SigSpec {
	return SigFromChunk(ChunkFromWire(wire, width, offset))
}

// SigFromInt builds a literal signal from the low bits of val.
func SigFromInt(val, width int) SigSpec {
	return SigFromConst(NewConstInt(val, width))
}

// SigFromState builds a literal signal filled with one state.
func SigFromState(bit State, width int) SigSpec {
	return SigFromConst(NewConstState(bit, width))
}

// Copy returns a signal with its own chunk storage.
func (s SigSpec) Copy() SigSpec {
	n := SigSpec{Chunks: make([]SigChunk, len(s.Chunks)), Width: s.Width}
	for i, c := range s.Chunks {
		n.Chunks[i] = c
		n.Chunks[i].Data = c.Data.Copy()
	}
	return n
}

// Append concatenates signal onto s.
func (s *SigSpec) Append(signal SigSpec) {
	for _, c := range signal.Chunks {
		s.Chunks = append(s.Chunks, c)
		s.Width += c.Width
	}
	s.Check()
}

// AppendChunk concatenates a single chunk.
func (s *SigSpec) AppendChunk(c SigChunk) {
	s.Chunks = append(s.Chunks, c)
	s.Width += c.Width
	s.Check()
}

// Expand rewrites the signal into single-bit chunks. Required before any
// position-wise comparison.
func (s *SigSpec) Expand() {
	newChunks := make([]SigChunk, 0, s.Width)
	for _, c := range s.Chunks {
		for j := 0; j < c.Width; j++ {
			newChunks = append(newChunks, c.Extract(j, 1))
		}
	}
	s.Chunks = newChunks
	s.Check()
}

// Optimize canonicalizes the signal: zero-width chunks are dropped and
// neighbors referencing consecutive bits of the same wire, or compatible
// literals, are merged. Chunks of auto-width wires are left alone.
func (s *SigSpec) Optimize() {
	chunks := s.Chunks[:0]
	for _, c := range s.Chunks {
		if c.Wire != nil && c.Wire.AutoWidth {
			chunks = append(chunks, c)
			continue
		}
		if c.Width == 0 {
			continue
		}
		chunks = append(chunks, c)
	}
	s.Chunks = chunks

	for i := 1; i < len(s.Chunks); i++ {
		ch1 := &s.Chunks[i-1]
		ch2 := &s.Chunks[i]
		if ch1.Wire != nil && ch1.Wire.AutoWidth {
			continue
		}
		if ch2.Wire != nil && ch2.Wire.AutoWidth {
			continue
		}
		if ch1.Wire == ch2.Wire {
			merged := false
			if ch1.Wire != nil && ch1.Offset+ch1.Width == ch2.Offset {
				ch1.Width += ch2.Width
				merged = true
			} else if ch1.Wire == nil && (ch1.Data.Str == "") == (ch2.Data.Str == "") {
				ch1.Data.Str = ch2.Data.Str + ch1.Data.Str
				bits := make([]State, 0, len(ch1.Data.Bits)+len(ch2.Data.Bits))
				bits = append(bits, ch1.Data.Bits...)
				bits = append(bits, ch2.Data.Bits...)
				ch1.Data.Bits = bits
				ch1.Width += ch2.Width
				merged = true
			}
			if merged {
				s.Chunks = append(s.Chunks[:i], s.Chunks[i+1:]...)
				i--
			}
		}
	}
	s.Check()
}

// Sort expands to single bits, sorts them into the canonical chunk order and
// re-canonicalizes.
func (s *SigSpec) Sort() {
	s.Expand()
	sort.SliceStable(s.Chunks, func(i, j int) bool {
		return compareChunks(s.Chunks[i], s.Chunks[j])
	})
	s.Optimize()
}

// SortAndUnify sorts and drops duplicate bits.
func (s *SigSpec) SortAndUnify() {
	s.Expand()
	sort.SliceStable(s.Chunks, func(i, j int) bool {
		return compareChunks(s.Chunks[i], s.Chunks[j])
	})
	for i := 1; i < len(s.Chunks); i++ {
		ch1 := s.Chunks[i-1]
		ch2 := s.Chunks[i]
		if !compareChunks(ch1, ch2) && !compareChunks(ch2, ch1) {
			s.Width -= s.Chunks[i].Width
			s.Chunks = append(s.Chunks[:i], s.Chunks[i+1:]...)
			i--
		}
	}
	s.Optimize()
}

// Replace substitutes, in place, all bits matching the wire-backed pattern
// with the positionally corresponding bits of with.
func (s *SigSpec) Replace(pattern, with SigSpec) {
	s.ReplaceInto(pattern, with, s)
}

// ReplaceInto matches pattern against s but writes the substitution into
// other, which must have the same width as s. A restart cursor prevents
// re-matching bits that were just written.
func (s *SigSpec) ReplaceInto(pattern, with SigSpec, other *SigSpec) {
	pos, restartPos := 0, 0
	if s.Width != other.Width {
		panic("rtlil: ReplaceInto width mismatch")
	}
	for i := 0; i < len(s.Chunks); i++ {
	restart:
		if i >= len(s.Chunks) {
			break
		}
		ch1 := s.Chunks[i]
		if ch1.Wire != nil && pos >= restartPos {
			poff := 0
			for j := 0; j < len(pattern.Chunks); j++ {
				ch2 := pattern.Chunks[j]
				if ch2.Wire == nil {
					panic("rtlil: replace pattern must be wire-backed")
				}
				if ch1.Wire == ch2.Wire {
					lower := maxInt(ch1.Offset, ch2.Offset)
					upper := minInt(ch1.Offset+ch1.Width, ch2.Offset+ch2.Width)
					if lower < upper {
						restartPos = pos + upper - ch1.Offset
						other.ReplaceAt(pos+lower-ch1.Offset, with.Extract(poff+lower-ch2.Offset, upper-lower))
						goto restart
					}
				}
				poff += ch2.Width
			}
		}
		pos += s.Chunks[i].Width
	}
	s.Check()
}

// ReplaceAt overwrites with.Width bits starting at offset.
func (s *SigSpec) ReplaceAt(offset int, with SigSpec) {
	if offset < 0 || offset+with.Width > s.Width {
		panic("rtlil: ReplaceAt out of range")
	}
	s.RemoveAt(offset, with.Width)
	pos := 0
	for i := 0; i < len(s.Chunks); i++ {
		if pos == offset {
			rest := append([]SigChunk(nil), s.Chunks[i:]...)
			s.Chunks = append(append(s.Chunks[:i], with.Chunks...), rest...)
			s.Width += with.Width
			s.Check()
			return
		}
		pos += s.Chunks[i].Width
	}
	if pos != offset {
		panic("rtlil: ReplaceAt lost position")
	}
	s.Chunks = append(s.Chunks, with.Chunks...)
	s.Width += with.Width
	s.Check()
}

// Remove deletes all bits of s that match the wire-backed pattern, shrinking
// the width.
func (s *SigSpec) Remove(pattern SigSpec) {
	s.removePattern(pattern, nil)
}

// RemoveInto deletes the bits of other at the positions where s matches
// pattern. s itself is not modified.
func (s SigSpec) RemoveInto(pattern SigSpec, other *SigSpec) {
	tmp := s.Copy()
	tmp.removePattern(pattern, other)
}

func (s *SigSpec) removePattern(pattern SigSpec, other *SigSpec) {
	pos := 0
	if other != nil && s.Width != other.Width {
		panic("rtlil: removePattern width mismatch")
	}
	for i := 0; i < len(s.Chunks); i++ {
	restart:
		if i >= len(s.Chunks) {
			break
		}
		ch1 := s.Chunks[i]
		if ch1.Wire != nil {
			for j := 0; j < len(pattern.Chunks); j++ {
				ch2 := pattern.Chunks[j]
				if ch2.Wire == nil {
					panic("rtlil: remove pattern must be wire-backed")
				}
				if ch1.Wire == ch2.Wire {
					lower := maxInt(ch1.Offset, ch2.Offset)
					upper := minInt(ch1.Offset+ch1.Width, ch2.Offset+ch2.Width)
					if lower < upper {
						if other != nil {
							other.RemoveAt(pos+lower-ch1.Offset, upper-lower)
						}
						s.RemoveAt(pos+lower-ch1.Offset, upper-lower)
						goto restart
					}
				}
			}
		}
		pos += s.Chunks[i].Width
	}
	s.Check()
}

// RemoveAt deletes length bits starting at offset.
func (s *SigSpec) RemoveAt(offset, length int) {
	if offset < 0 || length < 0 || offset+length > s.Width {
		panic("rtlil: RemoveAt out of range")
	}
	pos := 0
	for i := 0; i < len(s.Chunks); i++ {
		origWidth := s.Chunks[i].Width
		if pos+s.Chunks[i].Width > offset && pos < offset+length {
			off := offset - pos
			l := length
			if off < 0 {
				l += off
				off = 0
			}
			if l > s.Chunks[i].Width-off {
				l = s.Chunks[i].Width - off
			}
			lsbChunk := s.Chunks[i].Extract(0, off)
			msbChunk := s.Chunks[i].Extract(off+l, s.Chunks[i].Width-off-l)
			switch {
			case lsbChunk.Width == 0 && msbChunk.Width == 0:
				s.Chunks = append(s.Chunks[:i], s.Chunks[i+1:]...)
				i--
			case lsbChunk.Width == 0:
				s.Chunks[i] = msbChunk
			case msbChunk.Width == 0:
				s.Chunks[i] = lsbChunk
			default:
				s.Chunks[i] = lsbChunk
				rest := append([]SigChunk(nil), s.Chunks[i+1:]...)
				s.Chunks = append(append(s.Chunks[:i+1], msbChunk), rest...)
				i++
			}
			s.Width -= l
		}
		pos += origWidth
	}
	s.Check()
}

// RemoveConst drops all literal chunks.
func (s *SigSpec) RemoveConst() {
	chunks := s.Chunks[:0]
	for _, c := range s.Chunks {
		if c.Wire == nil {
			s.Width -= c.Width
			continue
		}
		chunks = append(chunks, c)
	}
	s.Chunks = chunks
	s.Check()
}

// Extract returns the length bits starting at offset.
func (s SigSpec) Extract(offset, length int) SigSpec {
	if offset < 0 || length < 0 || offset+length > s.Width {
		panic("rtlil: Extract out of range")
	}
	pos := 0
	var ret SigSpec
	for i := 0; i < len(s.Chunks); i++ {
		if pos+s.Chunks[i].Width > offset && pos < offset+length {
			off := offset - pos
			l := length
			if off < 0 {
				l += off
				off = 0
			}
			if l > s.Chunks[i].Width-off {
				l = s.Chunks[i].Width - off
			}
			ret.Chunks = append(ret.Chunks, s.Chunks[i].Extract(off, l))
			ret.Width += l
			offset += l
			length -= l
		}
		pos += s.Chunks[i].Width
	}
	if length != 0 {
		panic("rtlil: Extract lost bits")
	}
	ret.Check()
	return ret
}

// ExtractPattern returns the bits of s (or, positionally, of other) that
// overlap the wire-backed pattern.
func (s SigSpec) ExtractPattern(pattern SigSpec, other *SigSpec) SigSpec {
	pos := 0
	var ret SigSpec
	pattern = pattern.Copy()
	pattern.SortAndUnify()
	if other != nil && s.Width != other.Width {
		panic("rtlil: ExtractPattern width mismatch")
	}
	for i := 0; i < len(s.Chunks); i++ {
		ch1 := s.Chunks[i]
		if ch1.Wire != nil {
			for j := 0; j < len(pattern.Chunks); j++ {
				ch2 := pattern.Chunks[j]
				if ch2.Wire == nil {
					panic("rtlil: extract pattern must be wire-backed")
				}
				if ch1.Wire == ch2.Wire {
					lower := maxInt(ch1.Offset, ch2.Offset)
					upper := minInt(ch1.Offset+ch1.Width, ch2.Offset+ch2.Width)
					if lower < upper {
						if other != nil {
							ret.Append(other.Extract(pos+lower-ch1.Offset, upper-lower))
						} else {
							ret.Append(s.Extract(pos+lower-ch1.Offset, upper-lower))
						}
					}
				}
			}
		}
		pos += s.Chunks[i].Width
	}
	ret.Check()
	return ret
}

// Combine merges signal into s bit-wise. Positions equal to freeState are
// free; a position where neither side is free is a collision, resolved by
// taking signal's bit when override is set and by writing Sx otherwise.
// It reports whether no collision occurred.
func (s *SigSpec) Combine(signal SigSpec, freeState State, override bool) bool {
	noCollisions := true
	if s.Width != signal.Width {
		panic("rtlil: Combine width mismatch")
	}
	s.Expand()
	signal = signal.Copy()
	signal.Expand()

	for i := range s.Chunks {
		selfFree := s.Chunks[i].Wire == nil && s.Chunks[i].Data.Bits[0] == freeState
		otherFree := signal.Chunks[i].Wire == nil && signal.Chunks[i].Data.Bits[0] == freeState
		if !selfFree && !otherFree {
			if override {
				s.Chunks[i] = signal.Chunks[i]
			} else {
				s.Chunks[i] = ChunkFromState(Sx, 1)
			}
			noCollisions = false
		}
		if selfFree && !otherFree {
			s.Chunks[i] = signal.Chunks[i]
		}
	}

	s.Optimize()
	return noCollisions
}

// Extend truncates or extends the signal to width bits. Extension repeats the
// sign bit when isSigned is set; an undefined or annotation sign bit extends
// with S0 unless isSigned is set.
func (s *SigSpec) Extend(width int, isSigned bool) {
	if s.Width > width {
		s.RemoveAt(width, s.Width-width)
	}
	if s.Width < width {
		padding := SigFromState(S0, 1)
		if s.Width > 0 {
			padding = s.Extract(s.Width-1, 1)
		}
		if !isSigned && padding.Width == 1 && padding.Chunks[0].Wire == nil {
			switch padding.Chunks[0].Data.Bits[0] {
			case Sx, Sz, Sa, Sm:
				padding = SigFromState(S0, 1)
			}
		}
		for s.Width < width {
			s.Append(padding)
		}
	}
	s.Optimize()
}

// Check asserts the structural invariants of the signal.
func (s SigSpec) Check() {
	w := 0
	for _, chunk := range s.Chunks {
		if chunk.Wire == nil {
			if chunk.Offset != 0 {
				panic("rtlil: literal chunk with non-zero offset")
			}
			if len(chunk.Data.Bits) != chunk.Width {
				panic("rtlil: literal chunk width mismatch")
			}
			if chunk.Data.Str != "" && len(chunk.Data.Str)*8 != len(chunk.Data.Bits) {
				panic("rtlil: literal chunk string/bits mismatch")
			}
		} else {
			if chunk.Offset < 0 || chunk.Width < 0 {
				panic("rtlil: negative chunk geometry")
			}
			if chunk.Offset+chunk.Width > chunk.Wire.Width {
				panic("rtlil: chunk exceeds wire " + chunk.Wire.Name)
			}
			if len(chunk.Data.Bits) != 0 || chunk.Data.Str != "" {
				panic("rtlil: wire chunk carries literal data")
			}
		}
		w += chunk.Width
	}
	if w != s.Width {
		panic(fmt.Sprintf("rtlil: signal width %d does not match chunk sum %d", s.Width, w))
	}
}

// Equal compares canonical forms.
func (s SigSpec) Equal(other SigSpec) bool {
	if s.Width != other.Width {
		return false
	}
	a, b := s.Copy(), other.Copy()
	a.Optimize()
	b.Optimize()
	if len(a.Chunks) != len(b.Chunks) {
		return false
	}
	for i := range a.Chunks {
		if !a.Chunks[i].Equal(b.Chunks[i]) {
			return false
		}
	}
	return true
}

// Less orders signals by width, then canonical chunk count, then chunks.
func (s SigSpec) Less(other SigSpec) bool {
	if s.Width != other.Width {
		return s.Width < other.Width
	}
	a, b := s.Copy(), other.Copy()
	a.Optimize()
	b.Optimize()
	if len(a.Chunks) != len(b.Chunks) {
		return len(a.Chunks) < len(b.Chunks)
	}
	for i := range a.Chunks {
		if !a.Chunks[i].Equal(b.Chunks[i]) {
			return a.Chunks[i].Less(b.Chunks[i])
		}
	}
	return false
}

// IsFullyConst reports whether no chunk references a wire.
func (s SigSpec) IsFullyConst() bool {
	for _, c := range s.Chunks {
		if c.Width > 0 && c.Wire != nil {
			return false
		}
	}
	return true
}

// IsFullyDef reports whether the signal is constant with only S0/S1 bits.
func (s SigSpec) IsFullyDef() bool {
	for _, c := range s.Chunks {
		if c.Width > 0 && c.Wire != nil {
			return false
		}
		for _, b := range c.Data.Bits {
			if b != S0 && b != S1 {
				return false
			}
		}
	}
	return true
}

// IsFullyUndef reports whether the signal is constant with only Sx/Sz bits.
func (s SigSpec) IsFullyUndef() bool {
	for _, c := range s.Chunks {
		if c.Width > 0 && c.Wire != nil {
			return false
		}
		for _, b := range c.Data.Bits {
			if b != Sx && b != Sz {
				return false
			}
		}
	}
	return true
}

// HasMarkedBits reports whether any literal bit is Sm.
func (s SigSpec) HasMarkedBits() bool {
	for _, c := range s.Chunks {
		if c.Width > 0 && c.Wire == nil {
			for _, b := range c.Data.Bits {
				if b == Sm {
					return true
				}
			}
		}
	}
	return false
}

// AsBool converts a fully-const signal.
func (s SigSpec) AsBool() bool {
	return s.AsConst().AsBool()
}

// AsInt converts a fully-const signal.
func (s SigSpec) AsInt() int {
	return s.AsConst().AsInt()
}

// AsConst converts a fully-const signal to a single constant.
func (s SigSpec) AsConst() Const {
	if !s.IsFullyConst() {
		panic("rtlil: AsConst on non-constant signal")
	}
	sig := s.Copy()
	sig.Optimize()
	if sig.Width > 0 {
		return sig.Chunks[0].Data
	}
	return Const{}
}

// AsString renders the signal MSB first, with '?' for wire-backed bits.
func (s SigSpec) AsString() string {
	var b strings.Builder
	for i := len(s.Chunks); i > 0; i-- {
		chunk := s.Chunks[i-1]
		if chunk.Wire != nil {
			for j := 0; j < chunk.Width; j++ {
				b.WriteByte('?')
			}
		} else {
			b.WriteString(chunk.Data.AsString())
		}
	}
	return b.String()
}

// Match compares the MSB-first rendering against a pattern where a space
// accepts anything and '*' accepts x or z.
func (s SigSpec) Match(pattern string) bool {
	str := s.AsString()
	if len(pattern) != len(str) {
		panic("rtlil: Match pattern length mismatch")
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == ' ' {
			continue
		}
		if pattern[i] == '*' {
			if str[i] != 'z' && str[i] != 'x' {
				return false
			}
			continue
		}
		if pattern[i] != str[i] {
			return false
		}
	}
	return true
}

// String renders the signal for logs: chunks MSB first, wrapped in braces
// when there is more than one.
func (s SigSpec) String() string {
	parts := make([]string, 0, len(s.Chunks))
	for i := len(s.Chunks); i > 0; i-- {
		c := s.Chunks[i-1]
		if c.Wire == nil {
			parts = append(parts, fmt.Sprintf("%d'%s", c.Width, c.Data.AsString()))
		} else if c.Width == c.Wire.Width && c.Offset == 0 {
			parts = append(parts, c.Wire.Name)
		} else if c.Width == 1 {
			parts = append(parts, fmt.Sprintf("%s [%d]", c.Wire.Name, c.Offset))
		} else {
			parts = append(parts, fmt.Sprintf("%s [%d:%d]", c.Wire.Name, c.Offset+c.Width-1, c.Offset))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

// Key returns a stable string identifying the canonical form, usable as a
// map key where the source used ordered signal maps.
func (s SigSpec) Key() string {
	sig := s.Copy()
	sig.Optimize()
	return sig.String()
}

// ParseSig parses a comma-separated signal description: plain, escaped and
// generated net names with optional bit or range indices, and decimal or
// sized Verilog-style constants.
func ParseSig(module *Module, text string) (SigSpec, error) {
	var sig SigSpec
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		if tok[0] >= '0' && tok[0] <= '9' {
			c, err := parseVerilogConst(tok)
			if err != nil {
				return SigSpec{}, err
			}
			sig.Append(SigFromConst(c))
			continue
		}

		netname := tok
		indices := ""
		if netname[0] != '$' && netname[0] != '\\' {
			netname = "\\" + netname
		}
		if _, ok := module.Wires[netname]; !ok {
			if i := strings.IndexByte(netname, '['); i > 0 && strings.HasSuffix(netname, "]") {
				indices = netname[i:]
				netname = netname[:i]
			}
		}
		wire, ok := module.Wires[netname]
		if !ok {
			return SigSpec{}, errors.Errorf("rtlil: no wire %s in module %s", netname, module.Name)
		}
		if indices != "" {
			inner := indices[1 : len(indices)-1]
			if i := strings.IndexByte(inner, ':'); i >= 0 {
				a, err1 := strconv.Atoi(inner[:i])
				b, err2 := strconv.Atoi(inner[i+1:])
				if err1 != nil || err2 != nil {
					return SigSpec{}, errors.Errorf("rtlil: bad range %s", indices)
				}
				if a > b {
					a, b = b, a
				}
				sig.Append(SigFromWireRange(wire, b-a+1, a))
			} else {
				a, err := strconv.Atoi(inner)
				if err != nil {
					return SigSpec{}, errors.Errorf("rtlil: bad index %s", indices)
				}
				sig.Append(SigFromWireRange(wire, 1, a))
			}
		} else {
			sig.Append(SigFromWire(wire))
		}
	}
	return sig, nil
}

func parseVerilogConst(tok string) (Const, error) {
	i := strings.IndexByte(tok, '\'')
	if i < 0 {
		val, err := strconv.Atoi(tok)
		if err != nil {
			return Const{}, errors.Wrapf(err, "rtlil: bad constant %q", tok)
		}
		return NewConstInt(val, 32), nil
	}
	width, err := strconv.Atoi(tok[:i])
	if err != nil || width <= 0 || i+1 >= len(tok) {
		return Const{}, errors.Errorf("rtlil: bad sized constant %q", tok)
	}
	base := tok[i+1]
	body := tok[i+2:]
	switch base {
	case 'b', 'B':
		c := NewConstState(S0, width)
		pos := 0
		for j := len(body) - 1; j >= 0 && pos < width; j-- {
			var st State
			switch body[j] {
			case '0':
				st = S0
			case '1':
				st = S1
			case 'x', 'X':
				st = Sx
			case 'z', 'Z':
				st = Sz
			case '-':
				st = Sa
			case '_':
				continue
			default:
				return Const{}, errors.Errorf("rtlil: bad binary digit %q in %q", body[j], tok)
			}
			c.Bits[pos] = st
			pos++
		}
		return c, nil
	case 'd', 'D':
		val, err := strconv.Atoi(body)
		if err != nil {
			return Const{}, errors.Wrapf(err, "rtlil: bad decimal constant %q", tok)
		}
		return NewConstInt(val, width), nil
	case 'h', 'H':
		val, err := strconv.ParseInt(body, 16, 64)
		if err != nil {
			return Const{}, errors.Wrapf(err, "rtlil: bad hex constant %q", tok)
		}
		return NewConstInt(int(val), width), nil
	}
	return Const{}, errors.Errorf("rtlil: unsupported constant base %q in %q", base, tok)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
