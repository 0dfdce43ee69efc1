package hdl

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/crillab/gophersat/solver"
	"github.com/pkg/errors"
)

// Literal is a possibly negated CNF variable. The literal for
// variable v (1-based) is v when positive and -v when negated; 0 is
// not a literal.
type Literal int

// Not returns the negation of the literal.
func (l Literal) Not() Literal { return -l }

// Var returns the 1-based variable index of the literal.
func (l Literal) Var() int {
	if l < 0 {
		return int(-l)
	}
	return int(l)
}

// IsPos returns true if the literal is positive.
func (l Literal) IsPos() bool { return l > 0 }

// Cnf is a conjunction of clauses over a pool of variables. Clauses
// are stored as one flat literal array with clause end indices, the
// layout the DIMACS writer streams out directly.
type Cnf struct {
	literals      []Literal
	clauseIndices []int
	varCount      int
}

// NewCnf returns an empty formula.
func NewCnf() *Cnf { return &Cnf{} }

// Len returns the number of clauses.
func (c *Cnf) Len() int { return len(c.clauseIndices) }

// VarCount returns the number of variables allocated so far.
func (c *Cnf) VarCount() int { return c.varCount }

// Var allocates a fresh variable and returns its positive literal.
func (c *Cnf) Var() Literal {
	c.varCount++
	return Literal(c.varCount)
}

// AddClause appends the disjunction of the given literals.
func (c *Cnf) AddClause(clause ...Literal) {
	c.literals = append(c.literals, clause...)
	c.clauseIndices = append(c.clauseIndices, len(c.literals))
}

// Clause returns the i-th clause as a slice into the formula.
func (c *Cnf) Clause(i int) []Literal {
	start := 0
	if i > 0 {
		start = c.clauseIndices[i-1]
	}
	return c.literals[start:c.clauseIndices[i]]
}

// Tseitin relations. Each emits the clauses forcing the last literal
// to equal the gate applied to the others.

// RAnd adds clauses for a && b <=> y.
func (c *Cnf) RAnd(a, b, y Literal) {
	c.AddClause(a.Not(), b.Not(), y)
	c.AddClause(y.Not(), a)
	c.AddClause(y.Not(), b)
}

// ROr adds clauses for a || b <=> y.
func (c *Cnf) ROr(a, b, y Literal) {
	c.AddClause(a.Not(), y)
	c.AddClause(b.Not(), y)
	c.AddClause(y.Not(), a, b)
}

// RXor adds clauses for (a != b) <=> y.
func (c *Cnf) RXor(a, b, y Literal) {
	c.AddClause(a, b.Not(), y)
	c.AddClause(b, a.Not(), y)
	c.AddClause(b.Not(), a.Not(), y.Not())
	c.AddClause(b, a, y.Not())
}

// REq adds clauses for (a == b) <=> y.
func (c *Cnf) REq(a, b, y Literal) {
	c.AddClause(a, b, y)
	c.AddClause(a.Not(), b.Not(), y)
	c.AddClause(a, b.Not(), y.Not())
	c.AddClause(a.Not(), b, y.Not())
}

// RNot adds clauses for !a <=> b.
func (c *Cnf) RNot(a, b Literal) {
	c.AddClause(a, b)
	c.AddClause(a.Not(), b.Not())
}

// RSelect adds clauses for (cond ? a : b) <=> y.
func (c *Cnf) RSelect(cond, a, b, y Literal) {
	c.AddClause(cond.Not(), a.Not(), y)
	c.AddClause(cond, b.Not(), y)
	c.AddClause(y.Not(), a, cond.Not())
	c.AddClause(y.Not(), cond, b)
	c.AddClause(y.Not(), a, b)
}

// Functional API: each returns a fresh literal constrained to the
// gate's value.

// FAnd returns a literal equal to a && b.
func (c *Cnf) FAnd(a, b Literal) Literal {
	y := c.Var()
	c.RAnd(a, b, y)
	return y
}

// FOr returns a literal equal to a || b.
func (c *Cnf) FOr(a, b Literal) Literal {
	y := c.Var()
	c.ROr(a, b, y)
	return y
}

// FXor returns a literal equal to a != b.
func (c *Cnf) FXor(a, b Literal) Literal {
	y := c.Var()
	c.RXor(a, b, y)
	return y
}

// FEq returns a literal equal to a == b.
func (c *Cnf) FEq(a, b Literal) Literal {
	y := c.Var()
	c.REq(a, b, y)
	return y
}

// FSelect returns a literal equal to cond ? a : b.
func (c *Cnf) FSelect(cond, a, b Literal) Literal {
	y := c.Var()
	c.RSelect(cond, a, b, y)
	return y
}

// FConst returns a literal pinned to the given value.
func (c *Cnf) FConst(value bool) Literal {
	y := c.Var()
	if value {
		c.AddClause(y)
	} else {
		c.AddClause(y.Not())
	}
	return y
}

// FNotVec returns the element-wise negation of a literal vector.
func (c *Cnf) FNotVec(a []Literal) []Literal {
	result := make([]Literal, len(a))
	for i := range a {
		result[i] = a[i].Not()
	}
	return result
}

// FEqVec returns a literal equal to the equality of two equal-length
// vectors.
func (c *Cnf) FEqVec(a, b []Literal) Literal {
	assert(len(a) == len(b), "eq: length mismatch: %d != %d", len(a), len(b))
	result := c.FConst(true)
	for i := range a {
		result = c.FAnd(result, c.FEq(a[i], b[i]))
	}
	return result
}

// FLtU returns a literal equal to the unsigned comparison a < b.
func (c *Cnf) FLtU(a, b []Literal) Literal {
	assert(len(a) == len(b), "lt_u: length mismatch: %d != %d", len(a), len(b))
	active := c.FConst(true)
	result := c.FConst(false)
	for i := len(a) - 1; i >= 0; i-- {
		result = c.FOr(result, c.FAnd(active, c.FAnd(a[i].Not(), b[i])))
		active = c.FAnd(active, c.FAnd(a[i], b[i].Not()).Not())
	}
	return result
}

// FAddCarry returns the ripple-carry sum of two equal-length vectors
// with the given carry-in.
func (c *Cnf) FAddCarry(a, b []Literal, carry Literal) []Literal {
	assert(len(a) == len(b), "add: length mismatch: %d != %d", len(a), len(b))
	sum := make([]Literal, len(a))
	for i := range a {
		sum[i] = c.FXor(carry, c.FXor(a[i], b[i]))
		carry = c.FOr(c.FOr(c.FAnd(carry, b[i]), c.FAnd(a[i], carry)), c.FAnd(a[i], b[i]))
	}
	return sum
}

// FAdd returns the sum of two equal-length vectors.
func (c *Cnf) FAdd(a, b []Literal) []Literal {
	return c.FAddCarry(a, b, c.FConst(false))
}

// FSub returns the difference of two equal-length vectors.
func (c *Cnf) FSub(a, b []Literal) []Literal {
	return c.FAddCarry(a, c.FNotVec(b), c.FConst(true))
}

// Write streams the formula in DIMACS CNF format.
func (c *Cnf) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("p cnf ")
	bw.WriteString(strconv.Itoa(c.varCount))
	bw.WriteByte(' ')
	bw.WriteString(strconv.Itoa(c.Len()))
	bw.WriteByte('\n')
	start := 0
	for _, end := range c.clauseIndices {
		for i := start; i < end; i++ {
			if i != start {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.Itoa(int(c.literals[i])))
		}
		bw.WriteString(" 0\n")
		start = end
	}
	return bw.Flush()
}

// Save writes the formula to a DIMACS file. The file is closed on
// every path.
func (c *Cnf) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Solve decides satisfiability of the formula.
func (c *Cnf) Solve() (bool, error) {
	clauses := make([][]int, c.Len())
	for i := range clauses {
		clause := c.Clause(i)
		if len(clause) == 0 {
			return false, nil
		}
		ints := make([]int, len(clause))
		for j, lit := range clause {
			ints[j] = int(lit)
		}
		clauses[i] = ints
	}
	s := solver.New(solver.ParseSlice(clauses))
	switch s.Solve() {
	case solver.Sat:
		return true, nil
	case solver.Unsat:
		return false, nil
	default:
		return false, errors.New("solver returned indeterminate status")
	}
}

// Simplify returns an equisatisfiable formula produced by unit
// propagation and pure-literal elimination, with the surviving
// variables renumbered densely. If propagation derives an empty
// clause, the result is a formula with a single empty clause; an
// unsatisfiable input that propagation does not refute keeps its
// remaining clauses.
func (c *Cnf) Simplify() *Cnf {
	numClauses := c.Len()

	// Occurrence lists per variable and polarity, clause sizes, and
	// the initial unit queue.
	pos := make([][]int, c.varCount+1)
	neg := make([][]int, c.varCount+1)
	size := make([]int, numClauses)
	active := make([]bool, numClauses)
	assign := make([]int8, c.varCount+1) // 0 unassigned, +1 true, -1 false
	var units []int
	isUnsat := false

	for i := 0; i < numClauses; i++ {
		clause := c.Clause(i)
		active[i] = true
		size[i] = len(clause)
		switch len(clause) {
		case 0:
			isUnsat = true
		case 1:
			units = append(units, i)
		}
		for _, lit := range clause {
			if lit.IsPos() {
				pos[lit.Var()] = append(pos[lit.Var()], i)
			} else {
				neg[lit.Var()] = append(neg[lit.Var()], i)
			}
		}
	}

	assignVar := func(v int, value bool) {
		if value {
			assign[v] = 1
		} else {
			assign[v] = -1
		}
		satisfied, weakened := pos[v], neg[v]
		if !value {
			satisfied, weakened = weakened, satisfied
		}
		for _, i := range satisfied {
			active[i] = false
		}
		for _, i := range weakened {
			if !active[i] {
				continue
			}
			size[i]--
			switch size[i] {
			case 1:
				units = append(units, i)
			case 0:
				isUnsat = true
			}
		}
	}

	propagate := func() {
		for len(units) > 0 && !isUnsat {
			i := units[len(units)-1]
			units = units[:len(units)-1]
			if !active[i] {
				continue
			}
			for _, lit := range c.Clause(i) {
				if assign[lit.Var()] == 0 {
					assignVar(lit.Var(), lit.IsPos())
					break
				}
			}
		}
	}
	propagate()

	// Pure literals: any variable alive in only one polarity is
	// assigned to satisfy its occurrences, which may enable more
	// propagation.
	for !isUnsat {
		assigned := false
		for v := 1; v <= c.varCount; v++ {
			if assign[v] != 0 {
				continue
			}
			posAlive, negAlive := false, false
			for _, i := range pos[v] {
				if active[i] {
					posAlive = true
					break
				}
			}
			for _, i := range neg[v] {
				if active[i] {
					negAlive = true
					break
				}
			}
			if posAlive != negAlive {
				assignVar(v, posAlive)
				assigned = true
			}
		}
		if !assigned {
			break
		}
		propagate()
	}

	result := NewCnf()
	if isUnsat {
		result.AddClause()
		return result
	}

	renumber := make([]Literal, c.varCount+1)
	mapLit := func(lit Literal) Literal {
		if renumber[lit.Var()] == 0 {
			renumber[lit.Var()] = result.Var()
		}
		if lit.IsPos() {
			return renumber[lit.Var()]
		}
		return renumber[lit.Var()].Not()
	}
	for i := 0; i < numClauses; i++ {
		if !active[i] {
			continue
		}
		clause := make([]Literal, 0, size[i])
		for _, lit := range c.Clause(i) {
			if assign[lit.Var()] == 0 {
				clause = append(clause, mapLit(lit))
			}
		}
		result.AddClause(clause...)
	}
	return result
}
