// Package sat provides a small CNF builder with a DPLL solver and the
// importer that feeds cell semantics into it. Passes treat the solver as a
// black box offering a CNF surface and a model-returning Solve.
package sat

import (
	"golang.org/x/tools/container/intsets"
)

// Solver accumulates clauses over positive variable indices. Literals are
// signed variable indices.
type Solver struct {
	numVars int
	clauses [][]int
	used    intsets.Sparse

	trueLit int
}

// NewSolver returns a solver with the constant-true literal preallocated.
func NewSolver() *Solver {
	s := &Solver{}
	s.trueLit = s.NewVar()
	s.AddClause(s.trueLit)
	return s
}

// NewVar allocates a fresh variable and returns its positive literal.
func (s *Solver) NewVar() int {
	s.numVars++
	return s.numVars
}

// True returns the constant-true literal.
func (s *Solver) True() int { return s.trueLit }

// False returns the constant-false literal.
func (s *Solver) False() int { return -s.trueLit }

// AddClause appends a clause.
func (s *Solver) AddClause(lits ...int) {
	clause := append([]int(nil), lits...)
	s.clauses = append(s.clauses, clause)
	for _, l := range lits {
		s.used.Insert(abs(l))
	}
}

// Not returns the negation of a literal.
func (s *Solver) Not(a int) int { return -a }

// And returns a literal equivalent to a AND b.
func (s *Solver) And(a, b int) int {
	y := s.NewVar()
	s.AddClause(-a, -b, y)
	s.AddClause(a, -y)
	s.AddClause(b, -y)
	return y
}

// Or returns a literal equivalent to a OR b.
func (s *Solver) Or(a, b int) int {
	y := s.NewVar()
	s.AddClause(a, b, -y)
	s.AddClause(-a, y)
	s.AddClause(-b, y)
	return y
}

// Xor returns a literal equivalent to a XOR b.
func (s *Solver) Xor(a, b int) int {
	y := s.NewVar()
	s.AddClause(-a, -b, -y)
	s.AddClause(a, b, -y)
	s.AddClause(a, -b, y)
	s.AddClause(-a, b, y)
	return y
}

// Mux returns a literal equivalent to (sel ? b : a).
func (s *Solver) Mux(a, b, sel int) int {
	y := s.NewVar()
	s.AddClause(-sel, -b, y)
	s.AddClause(-sel, b, -y)
	s.AddClause(sel, -a, y)
	s.AddClause(sel, a, -y)
	return y
}

// OrN folds a literal list with Or; an empty list is false.
func (s *Solver) OrN(lits []int) int {
	if len(lits) == 0 {
		return s.False()
	}
	y := lits[0]
	for _, l := range lits[1:] {
		y = s.Or(y, l)
	}
	return y
}

// AndN folds a literal list with And; an empty list is true.
func (s *Solver) AndN(lits []int) int {
	if len(lits) == 0 {
		return s.True()
	}
	y := lits[0]
	for _, l := range lits[1:] {
		y = s.And(y, l)
	}
	return y
}

// VecNe returns a literal that is true iff the two equally-long literal
// vectors differ in any position.
func (s *Solver) VecNe(a, b []int) int {
	if len(a) != len(b) {
		panic("sat: VecNe length mismatch")
	}
	diffs := make([]int, len(a))
	for i := range a {
		diffs[i] = s.Xor(a[i], b[i])
	}
	return s.OrN(diffs)
}

// Solve searches for a satisfying assignment under the given assumptions.
// On success it returns the values of the model literals.
func (s *Solver) Solve(model []int, assumptions ...int) (bool, []bool) {
	assign := make([]int8, s.numVars+1)

	clauses := make([][]int, 0, len(s.clauses)+len(assumptions))
	clauses = append(clauses, s.clauses...)
	for _, a := range assumptions {
		clauses = append(clauses, []int{a})
	}

	if !s.dpll(clauses, assign) {
		return false, nil
	}

	values := make([]bool, len(model))
	for i, lit := range model {
		v := assign[abs(lit)]
		val := v == 1
		if lit < 0 {
			val = !val
		}
		values[i] = val
	}
	return true, values
}

func (s *Solver) dpll(clauses [][]int, assign []int8) bool {
	// unit propagation to fixpoint
	trail := []int{}
	for {
		progressed := false
		for _, clause := range clauses {
			satisfied := false
			unassigned := 0
			var unit int
			for _, lit := range clause {
				switch value(assign, lit) {
				case 1:
					satisfied = true
				case 0:
					unassigned++
					unit = lit
				}
				if satisfied {
					break
				}
			}
			if satisfied {
				continue
			}
			if unassigned == 0 {
				for _, lit := range trail {
					assign[abs(lit)] = 0
				}
				return false
			}
			if unassigned == 1 {
				setLit(assign, unit)
				trail = append(trail, unit)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	branch := 0
	var unassignedVars intsets.Sparse
	unassignedVars.Copy(&s.used)
	for !unassignedVars.IsEmpty() {
		v := unassignedVars.Min()
		unassignedVars.Remove(v)
		if assign[v] == 0 {
			branch = v
			break
		}
	}
	if branch == 0 {
		return true
	}

	for _, phase := range []int8{1, -1} {
		assign[branch] = phase
		if s.dpll(clauses, assign) {
			return true
		}
		assign[branch] = 0
	}

	for _, lit := range trail {
		assign[abs(lit)] = 0
	}
	return false
}

func value(assign []int8, lit int) int8 {
	v := assign[abs(lit)]
	if v == 0 {
		return 0
	}
	if lit < 0 {
		return -v
	}
	return v
}

func setLit(assign []int8, lit int) {
	if lit < 0 {
		assign[-lit] = -1
	} else {
		assign[lit] = 1
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
