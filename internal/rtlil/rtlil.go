// Package rtlil holds the register-transfer-level intermediate language:
// the design/module/wire/cell containers and the signal algebra shared by
// all frontends, passes and backends.
package rtlil

import (
	"sort"

	"github.com/pkg/errors"
)

// Wire is a named bit-vector net within a module.
type Wire struct {
	Name        Id
	Width       int
	StartOffset int
	PortId      int
	PortInput   bool
	PortOutput  bool
	AutoWidth   bool
	Attributes  map[Id]Const
}

// NewWire returns a 1-bit wire with the given name.
func NewWire(name Id) *Wire {
	return &Wire{Name: name, Width: 1, Attributes: map[Id]Const{}}
}

// Copy returns a deep copy of the wire.
func (w *Wire) Copy() *Wire {
	n := *w
	n.Attributes = copyAttrs(w.Attributes)
	return &n
}

// Memory is an addressable storage block, kept separate from wires and cells
// until a lowering pass converts it.
type Memory struct {
	Name       Id
	Width      int
	Size       int
	Attributes map[Id]Const
}

// NewMemory returns a 1-bit-wide empty memory with the given name.
func NewMemory(name Id) *Memory {
	return &Memory{Name: name, Width: 1, Attributes: map[Id]Const{}}
}

// Copy returns a deep copy of the memory.
func (m *Memory) Copy() *Memory {
	n := *m
	n.Attributes = copyAttrs(m.Attributes)
	return &n
}

// Cell is a named instance of a cell type with parameter and connection maps.
type Cell struct {
	Name        Id
	Type        Id
	Parameters  map[Id]Const
	Connections map[Id]SigSpec
	Attributes  map[Id]Const
}

// NewCell returns an empty cell of the given name and type.
func NewCell(name, typ Id) *Cell {
	return &Cell{
		Name:        name,
		Type:        typ,
		Parameters:  map[Id]Const{},
		Connections: map[Id]SigSpec{},
		Attributes:  map[Id]Const{},
	}
}

// Copy returns a deep copy of the cell.
func (c *Cell) Copy() *Cell {
	n := NewCell(c.Name, c.Type)
	for k, v := range c.Parameters {
		n.Parameters[k] = v.Copy()
	}
	for k, v := range c.Connections {
		n.Connections[k] = v.Copy()
	}
	n.Attributes = copyAttrs(c.Attributes)
	return n
}

// Optimize canonicalizes all connection signals.
func (c *Cell) Optimize() {
	for k, v := range c.Connections {
		v.Optimize()
		c.Connections[k] = v
	}
}

// SyncType classifies a process sync rule.
type SyncType int

const (
	SyncAlways SyncType = iota
	SyncInit
	SyncPosedge
	SyncNegedge
	SyncEdge
)

// CaseRule is one arm of a switch: compare patterns, parallel assignments and
// nested switches.
type CaseRule struct {
	Compare  []SigSpec
	Actions  []SigSig
	Switches []*SwitchRule
}

// Clone deep-copies the case tree.
func (c *CaseRule) Clone() *CaseRule {
	n := &CaseRule{}
	for _, cmp := range c.Compare {
		n.Compare = append(n.Compare, cmp.Copy())
	}
	for _, a := range c.Actions {
		n.Actions = append(n.Actions, SigSig{a.First.Copy(), a.Second.Copy()})
	}
	for _, sw := range c.Switches {
		n.Switches = append(n.Switches, sw.Clone())
	}
	return n
}

// Optimize canonicalizes all signals in the case tree.
func (c *CaseRule) Optimize() {
	for _, sw := range c.Switches {
		sw.Optimize()
	}
	for i := range c.Compare {
		c.Compare[i].Optimize()
	}
	for i := range c.Actions {
		c.Actions[i].First.Optimize()
		c.Actions[i].Second.Optimize()
	}
}

// SwitchRule is a decision on a signal with case arms.
type SwitchRule struct {
	Signal     SigSpec
	Attributes map[Id]Const
	Cases      []*CaseRule
}

// Clone deep-copies the switch tree.
func (s *SwitchRule) Clone() *SwitchRule {
	n := &SwitchRule{Signal: s.Signal.Copy(), Attributes: copyAttrs(s.Attributes)}
	for _, c := range s.Cases {
		n.Cases = append(n.Cases, c.Clone())
	}
	return n
}

// Optimize canonicalizes all signals in the switch tree.
func (s *SwitchRule) Optimize() {
	s.Signal.Optimize()
	for _, c := range s.Cases {
		c.Optimize()
	}
}

// SyncRule attaches actions to an event on a signal.
type SyncRule struct {
	Type    SyncType
	Signal  SigSpec
	Actions []SigSig
}

// Clone deep-copies the sync rule.
func (s *SyncRule) Clone() *SyncRule {
	n := &SyncRule{Type: s.Type, Signal: s.Signal.Copy()}
	for _, a := range s.Actions {
		n.Actions = append(n.Actions, SigSig{a.First.Copy(), a.Second.Copy()})
	}
	return n
}

// Optimize canonicalizes all signals in the sync rule.
func (s *SyncRule) Optimize() {
	s.Signal.Optimize()
	for i := range s.Actions {
		s.Actions[i].First.Optimize()
		s.Actions[i].Second.Optimize()
	}
}

// Process is a behavioral remnant not yet lowered to cells.
type Process struct {
	Name       Id
	Attributes map[Id]Const
	RootCase   CaseRule
	Syncs      []*SyncRule
}

// Clone deep-copies the process.
func (p *Process) Clone() *Process {
	n := &Process{Name: p.Name, Attributes: copyAttrs(p.Attributes)}
	n.RootCase = *p.RootCase.Clone()
	for _, s := range p.Syncs {
		n.Syncs = append(n.Syncs, s.Clone())
	}
	return n
}

// Optimize canonicalizes all signals in the process.
func (p *Process) Optimize() {
	p.RootCase.Optimize()
	for _, s := range p.Syncs {
		s.Optimize()
	}
}

// Module owns its wires, memories, cells and processes. Cells and connections
// reference wires of this module only.
type Module struct {
	Name        Id
	Wires       map[Id]*Wire
	Memories    map[Id]*Memory
	Cells       map[Id]*Cell
	Processes   map[Id]*Process
	Connections []SigSig
	Attributes  map[Id]Const

	// DeriveFn specializes a parametric module template and returns the name
	// of the derived module within design. Nil for non-parametric modules.
	DeriveFn func(design *Design, parameters map[Id]Const) (Id, error)
}

// NewModule returns an empty module with the given name.
func NewModule(name Id) *Module {
	return &Module{
		Name:       name,
		Wires:      map[Id]*Wire{},
		Memories:   map[Id]*Memory{},
		Cells:      map[Id]*Cell{},
		Processes:  map[Id]*Process{},
		Attributes: map[Id]Const{},
	}
}

// Derive specializes a parametric module. Non-parametric modules reject
// parameters.
func (m *Module) Derive(design *Design, parameters map[Id]Const) (Id, error) {
	if m.DeriveFn == nil {
		return "", errors.Errorf("rtlil: module %s is used with parameters but is not parametric", UnescapeId(m.Name))
	}
	return m.DeriveFn(design, parameters)
}

// CountId returns the number of objects with the given name across the wire,
// memory, cell and process maps.
func (m *Module) CountId(id Id) int {
	count := 0
	if _, ok := m.Wires[id]; ok {
		count++
	}
	if _, ok := m.Memories[id]; ok {
		count++
	}
	if _, ok := m.Cells[id]; ok {
		count++
	}
	if _, ok := m.Processes[id]; ok {
		count++
	}
	return count
}

// AddWire inserts a wire; the name must be unused.
func (m *Module) AddWire(w *Wire) {
	if w.Name == "" {
		panic("rtlil: wire with empty name")
	}
	if m.CountId(w.Name) != 0 {
		panic("rtlil: duplicate id " + w.Name)
	}
	m.Wires[w.Name] = w
}

// AddCell inserts a cell; the name must be unused.
func (m *Module) AddCell(c *Cell) {
	if c.Name == "" {
		panic("rtlil: cell with empty name")
	}
	if m.CountId(c.Name) != 0 {
		panic("rtlil: duplicate id " + c.Name)
	}
	m.Cells[c.Name] = c
}

// NewWireInModule creates a wire of the given width, inserts it and returns it.
func (m *Module) NewWireInModule(width int, name Id) *Wire {
	w := NewWire(name)
	w.Width = width
	m.AddWire(w)
	return w
}

// FixupPorts sorts port wires by (port id, name), with ports whose id is still
// 0 placed after all numbered ports, and reassigns consecutive 1-based port
// ids; non-port wires get port id 0.
func (m *Module) FixupPorts() {
	var allPorts []*Wire
	for _, name := range SortedWireNames(m) {
		w := m.Wires[name]
		if w.PortInput || w.PortOutput {
			allPorts = append(allPorts, w)
		} else {
			w.PortId = 0
		}
	}
	sort.SliceStable(allPorts, func(i, j int) bool {
		a, b := allPorts[i], allPorts[j]
		if (a.PortId != 0) != (b.PortId != 0) {
			return a.PortId != 0
		}
		if a.PortId == b.PortId {
			return a.Name < b.Name
		}
		return a.PortId < b.PortId
	})
	for i, w := range allPorts {
		w.PortId = i + 1
	}
}

// Optimize canonicalizes all signals in the module.
func (m *Module) Optimize() {
	for _, name := range SortedCellNames(m) {
		m.Cells[name].Optimize()
	}
	for _, name := range SortedProcessNames(m) {
		m.Processes[name].Optimize()
	}
	for i := range m.Connections {
		m.Connections[i].First.Optimize()
		m.Connections[i].Second.Optimize()
	}
}

// Clone deep-copies the module and rebinds every signal chunk to the wires of
// the copy.
func (m *Module) Clone() *Module {
	n := NewModule(m.Name)
	n.Attributes = copyAttrs(m.Attributes)
	n.DeriveFn = m.DeriveFn

	for name, w := range m.Wires {
		n.Wires[name] = w.Copy()
	}
	for name, mem := range m.Memories {
		n.Memories[name] = mem.Copy()
	}
	for name, c := range m.Cells {
		n.Cells[name] = c.Copy()
	}
	for name, p := range m.Processes {
		n.Processes[name] = p.Clone()
	}
	for _, conn := range m.Connections {
		n.Connections = append(n.Connections, SigSig{conn.First.Copy(), conn.Second.Copy()})
	}

	n.RewriteSigSpecs(func(sig *SigSpec) {
		for i := range sig.Chunks {
			if sig.Chunks[i].Wire != nil {
				sig.Chunks[i].Wire = n.Wires[sig.Chunks[i].Wire.Name]
			}
		}
	})
	return n
}

// RewriteSigSpecs applies fn to every signal stored in the module.
func (m *Module) RewriteSigSpecs(fn func(*SigSpec)) {
	for _, name := range SortedCellNames(m) {
		c := m.Cells[name]
		for port, sig := range c.Connections {
			fn(&sig)
			c.Connections[port] = sig
		}
	}
	for _, name := range SortedProcessNames(m) {
		rewriteCaseSigSpecs(&m.Processes[name].RootCase, fn)
		for _, sync := range m.Processes[name].Syncs {
			fn(&sync.Signal)
			for i := range sync.Actions {
				fn(&sync.Actions[i].First)
				fn(&sync.Actions[i].Second)
			}
		}
	}
	for i := range m.Connections {
		fn(&m.Connections[i].First)
		fn(&m.Connections[i].Second)
	}
}

func rewriteCaseSigSpecs(c *CaseRule, fn func(*SigSpec)) {
	for i := range c.Compare {
		fn(&c.Compare[i])
	}
	for i := range c.Actions {
		fn(&c.Actions[i].First)
		fn(&c.Actions[i].Second)
	}
	for _, sw := range c.Switches {
		fn(&sw.Signal)
		for _, cs := range sw.Cases {
			rewriteCaseSigSpecs(cs, fn)
		}
	}
}

// Check asserts the structural invariants of the module.
func (m *Module) Check() error {
	for name, w := range m.Wires {
		if name != w.Name || !ValidId(name) {
			return errors.Errorf("rtlil: bad wire key %q in module %s", name, m.Name)
		}
		if w.Width < 0 || w.PortId < 0 {
			return errors.Errorf("rtlil: bad geometry on wire %s", name)
		}
		if w.PortId > 0 && !w.PortInput && !w.PortOutput {
			return errors.Errorf("rtlil: wire %s has a port id but no direction", name)
		}
		if err := checkAttrKeys(w.Attributes); err != nil {
			return err
		}
	}
	for name, mem := range m.Memories {
		if name != mem.Name || !ValidId(name) {
			return errors.Errorf("rtlil: bad memory key %q in module %s", name, m.Name)
		}
		if mem.Width < 0 || mem.Size < 0 {
			return errors.Errorf("rtlil: bad geometry on memory %s", name)
		}
		if err := checkAttrKeys(mem.Attributes); err != nil {
			return err
		}
	}
	for name, c := range m.Cells {
		if name != c.Name || !ValidId(name) {
			return errors.Errorf("rtlil: bad cell key %q in module %s", name, m.Name)
		}
		if !ValidId(c.Type) {
			return errors.Errorf("rtlil: bad type %q on cell %s", c.Type, name)
		}
		for port, sig := range c.Connections {
			if !ValidId(port) {
				return errors.Errorf("rtlil: bad port name %q on cell %s", port, name)
			}
			sig.Check()
			for _, chunk := range sig.Chunks {
				if chunk.Wire != nil && m.Wires[chunk.Wire.Name] != chunk.Wire {
					return errors.Errorf("rtlil: cell %s references foreign wire %s", name, chunk.Wire.Name)
				}
			}
		}
		if err := checkAttrKeys(c.Parameters); err != nil {
			return err
		}
		if err := checkAttrKeys(c.Attributes); err != nil {
			return err
		}
	}
	for name, p := range m.Processes {
		if name != p.Name || !ValidId(name) {
			return errors.Errorf("rtlil: bad process key %q in module %s", name, m.Name)
		}
	}
	for _, conn := range m.Connections {
		if conn.First.Width != conn.Second.Width {
			return errors.Errorf("rtlil: connection width mismatch in module %s: %s = %s",
				m.Name, conn.First.String(), conn.Second.String())
		}
		conn.First.Check()
		conn.Second.Check()
	}
	return checkAttrKeys(m.Attributes)
}

// Design owns the modules and the selection stack that scopes pass execution.
type Design struct {
	Modules              map[Id]*Module
	SelectionStack       []Selection
	SelectionVars        map[string]Selection
	SelectedActiveModule Id
}

// NewDesign returns an empty design.
func NewDesign() *Design {
	return &Design{
		Modules:       map[Id]*Module{},
		SelectionVars: map[string]Selection{},
	}
}

// AddModule inserts a module; the name must be unused.
func (d *Design) AddModule(m *Module) {
	if !ValidId(m.Name) {
		panic("rtlil: bad module name " + m.Name)
	}
	if _, ok := d.Modules[m.Name]; ok {
		panic("rtlil: duplicate module " + m.Name)
	}
	d.Modules[m.Name] = m
}

// Check asserts the structural invariants of all modules.
func (d *Design) Check() error {
	for name, m := range d.Modules {
		if name != m.Name || !ValidId(name) {
			return errors.Errorf("rtlil: bad module key %q", name)
		}
		if err := m.Check(); err != nil {
			return err
		}
	}
	return nil
}

// Optimize canonicalizes all modules and prunes all selections.
func (d *Design) Optimize() {
	for _, name := range SortedModuleNames(d) {
		d.Modules[name].Optimize()
	}
	for i := range d.SelectionStack {
		d.SelectionStack[i].Optimize(d)
	}
	for k, sel := range d.SelectionVars {
		sel.Optimize(d)
		d.SelectionVars[k] = sel
	}
}

// SelectedModule reports whether the active-module filter and the top
// selection admit the module.
func (d *Design) SelectedModule(modName Id) bool {
	if d.SelectedActiveModule != "" && modName != d.SelectedActiveModule {
		return false
	}
	if len(d.SelectionStack) == 0 {
		return true
	}
	return d.SelectionStack[len(d.SelectionStack)-1].SelectedModule(modName)
}

// SelectedWholeModule reports whether the module is selected with all of its
// members.
func (d *Design) SelectedWholeModule(modName Id) bool {
	if d.SelectedActiveModule != "" && modName != d.SelectedActiveModule {
		return false
	}
	if len(d.SelectionStack) == 0 {
		return true
	}
	return d.SelectionStack[len(d.SelectionStack)-1].SelectedWholeModule(modName)
}

// SelectedMember reports whether the named member of the module is selected.
func (d *Design) SelectedMember(modName, membName Id) bool {
	if d.SelectedActiveModule != "" && modName != d.SelectedActiveModule {
		return false
	}
	if len(d.SelectionStack) == 0 {
		return true
	}
	return d.SelectionStack[len(d.SelectionStack)-1].SelectedMember(modName, membName)
}

// Select adds a member to the top selection of the stack.
func (d *Design) Select(modName, membName Id) {
	if len(d.SelectionStack) == 0 {
		return
	}
	d.SelectionStack[len(d.SelectionStack)-1].Select(modName, membName)
}

func copyAttrs(attrs map[Id]Const) map[Id]Const {
	n := make(map[Id]Const, len(attrs))
	for k, v := range attrs {
		n[k] = v.Copy()
	}
	return n
}

func checkAttrKeys(attrs map[Id]Const) error {
	for k := range attrs {
		if !ValidId(k) {
			return errors.Errorf("rtlil: bad attribute key %q", k)
		}
	}
	return nil
}

// GetBoolAttribute reads an attribute as a boolean, missing meaning false.
func GetBoolAttribute(attrs map[Id]Const, name Id) bool {
	c, ok := attrs[name]
	return ok && c.AsBool()
}

// SortedModuleNames returns the design's module names in key order.
func SortedModuleNames(d *Design) []Id {
	return sortedKeys(d.Modules)
}

// SortedWireNames returns the module's wire names in key order.
func SortedWireNames(m *Module) []Id {
	return sortedKeys(m.Wires)
}

// SortedMemoryNames returns the module's memory names in key order.
func SortedMemoryNames(m *Module) []Id {
	return sortedKeys(m.Memories)
}

// SortedCellNames returns the module's cell names in key order.
func SortedCellNames(m *Module) []Id {
	return sortedKeys(m.Cells)
}

// SortedProcessNames returns the module's process names in key order.
func SortedProcessNames(m *Module) []Id {
	return sortedKeys(m.Processes)
}

func sortedKeys[V any](m map[Id]V) []Id {
	keys := make([]Id, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
