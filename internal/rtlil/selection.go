package rtlil

// Selection names a subset of the design: either everything, or a set of
// fully-selected modules plus per-module member sets.
type Selection struct {
	FullSelection   bool
	SelectedModules map[Id]bool
	SelectedMembers map[Id]map[Id]bool
}

// NewSelection returns a selection; full selects the whole design.
func NewSelection(full bool) Selection {
	return Selection{
		FullSelection:   full,
		SelectedModules: map[Id]bool{},
		SelectedMembers: map[Id]map[Id]bool{},
	}
}

// SelectedModule reports whether any part of the module is selected.
func (s *Selection) SelectedModule(modName Id) bool {
	if s.FullSelection {
		return true
	}
	if s.SelectedModules[modName] {
		return true
	}
	return len(s.SelectedMembers[modName]) > 0
}

// SelectedWholeModule reports whether the module is selected in full.
func (s *Selection) SelectedWholeModule(modName Id) bool {
	if s.FullSelection {
		return true
	}
	return s.SelectedModules[modName]
}

// SelectedMember reports whether the named member is selected.
func (s *Selection) SelectedMember(modName, membName Id) bool {
	if s.FullSelection {
		return true
	}
	if s.SelectedModules[modName] {
		return true
	}
	return s.SelectedMembers[modName][membName]
}

// Select adds a single member to the selection.
func (s *Selection) Select(modName, membName Id) {
	if s.FullSelection {
		return
	}
	if s.SelectedModules[modName] {
		return
	}
	if s.SelectedMembers[modName] == nil {
		s.SelectedMembers[modName] = map[Id]bool{}
	}
	s.SelectedMembers[modName][membName] = true
}

// SelectModule adds a whole module to the selection.
func (s *Selection) SelectModule(modName Id) {
	if s.FullSelection {
		return
	}
	s.SelectedModules[modName] = true
	delete(s.SelectedMembers, modName)
}

// Optimize prunes dangling names, promotes a module whose every member is
// named into the module set, and collapses to a full selection when every
// module of the design is selected.
func (s *Selection) Optimize(design *Design) {
	if s.FullSelection {
		s.SelectedModules = map[Id]bool{}
		s.SelectedMembers = map[Id]map[Id]bool{}
		return
	}

	for modName := range s.SelectedModules {
		if _, ok := design.Modules[modName]; !ok {
			delete(s.SelectedModules, modName)
		}
		delete(s.SelectedMembers, modName)
	}

	for modName := range s.SelectedMembers {
		if _, ok := design.Modules[modName]; !ok {
			delete(s.SelectedMembers, modName)
		}
	}

	for modName, members := range s.SelectedMembers {
		mod := design.Modules[modName]
		for membName := range members {
			if mod.CountId(membName) == 0 {
				delete(members, membName)
			}
		}
	}

	for modName, members := range s.SelectedMembers {
		mod := design.Modules[modName]
		if len(members) == 0 {
			delete(s.SelectedMembers, modName)
		} else if len(members) == len(mod.Wires)+len(mod.Memories)+len(mod.Cells)+len(mod.Processes) {
			delete(s.SelectedMembers, modName)
			s.SelectedModules[modName] = true
		}
	}

	if len(s.SelectedModules) == len(design.Modules) {
		s.FullSelection = true
		s.SelectedModules = map[Id]bool{}
		s.SelectedMembers = map[Id]map[Id]bool{}
	}
}
