// Package formula compiles and evaluates the two-variable arithmetic
// expressions used as support, aggregation and attack combinators.
//
// Expressions range over the variables X and Y, numeric literals, the
// operators + - * / % ^, parentheses and a fixed set of functions:
//
//	X + Y
//	max(0, X - Y)
//	1 - (1 - X) * (1 - Y)
package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"

	"github.com/cognicore/laf/pkg/laf/internalerr"
)

// Error reports a formula that failed to parse or evaluate.
type Error struct {
	Expr string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula %q: %s", e.Expr, e.Msg)
}

func (e *Error) Unwrap() error { return internalerr.ErrFormula }

// Evaluator evaluates expr with the given bindings for X and Y.
type Evaluator interface {
	Evaluate(expr string, x, y float64) (float64, error)
}

// Preparer is implemented by evaluators that can reject an expression
// before it is first evaluated.
type Preparer interface {
	Prepare(expr string) error
}

// Expr is a compiled expression.
type Expr struct {
	src  string
	root *expression
}

// Compile parses expr and checks its variables and function calls.
func Compile(expr string) (*Expr, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &Error{Expr: expr, Msg: "empty expression"}
	}

	root := &expression{}
	if err := parser.ParseString("", expr, root); err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, &Error{Expr: expr, Msg: fmt.Sprintf("column %d: %s", perr.Position().Column, perr.Message())}
		}
		return nil, &Error{Expr: expr, Msg: err.Error()}
	}

	if err := root.check(); err != nil {
		return nil, &Error{Expr: expr, Msg: err.Error()}
	}

	return &Expr{src: expr, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression with X=x and Y=y. Division by zero and
// non-finite results are errors.
func (e *Expr) Eval(x, y float64) (float64, error) {
	v, err := e.root.eval(env{x: x, y: y})
	if err != nil {
		return 0, &Error{Expr: e.src, Msg: err.Error()}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Expr: e.src, Msg: fmt.Sprintf("non-finite result for X=%g, Y=%g", x, y)}
	}
	return v, nil
}

// Evaluate compiles and evaluates expr once.
func Evaluate(expr string, x, y float64) (float64, error) {
	e, err := Compile(expr)
	if err != nil {
		return 0, err
	}
	return e.Eval(x, y)
}

// Cache is an Evaluator that compiles each distinct expression once.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	exprs map[string]*Expr
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{exprs: make(map[string]*Expr)}
}

// Compile returns the cached compilation of expr, compiling it on first use.
func (c *Cache) Compile(expr string) (*Expr, error) {
	c.mu.RLock()
	e, ok := c.exprs[expr]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := Compile(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.exprs[expr] = e
	c.mu.Unlock()
	return e, nil
}

// Prepare implements Preparer.
func (c *Cache) Prepare(expr string) error {
	_, err := c.Compile(expr)
	return err
}

// Evaluate implements Evaluator.
func (c *Cache) Evaluate(expr string, x, y float64) (float64, error) {
	e, err := c.Compile(expr)
	if err != nil {
		return 0, err
	}
	return e.Eval(x, y)
}

// Len returns the number of compiled expressions held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.exprs)
}
