package formula

import (
	"errors"
	"fmt"
	"math"
)

type env struct {
	x, y float64
}

type function struct {
	arity int
	fn    func(args []float64) float64
}

func unaryFn(f func(float64) float64) function {
	return function{arity: 1, fn: func(a []float64) float64 { return f(a[0]) }}
}

var functions = map[string]function{
	"abs":    unaryFn(math.Abs),
	"acos":   unaryFn(math.Acos),
	"asin":   unaryFn(math.Asin),
	"atan":   unaryFn(math.Atan),
	"cbrt":   unaryFn(math.Cbrt),
	"ceil":   unaryFn(math.Ceil),
	"cos":    unaryFn(math.Cos),
	"cosh":   unaryFn(math.Cosh),
	"exp":    unaryFn(math.Exp),
	"floor":  unaryFn(math.Floor),
	"log":    unaryFn(math.Log),
	"log10":  unaryFn(math.Log10),
	"log2":   unaryFn(math.Log2),
	"sin":    unaryFn(math.Sin),
	"sinh":   unaryFn(math.Sinh),
	"sqrt":   unaryFn(math.Sqrt),
	"tan":    unaryFn(math.Tan),
	"tanh":   unaryFn(math.Tanh),
	"signum": unaryFn(signum),
	"min":    {arity: 2, fn: func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":    {arity: 2, fn: func(a []float64) float64 { return math.Max(a[0], a[1]) }},
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

var errDivByZero = errors.New("division by zero")

// check walks the tree and rejects unknown variables and bad calls, so that
// these surface at compile time rather than on first evaluation.

func (e *expression) check() error {
	if err := e.Head.check(); err != nil {
		return err
	}
	for _, t := range e.Tail {
		if err := t.Term.check(); err != nil {
			return err
		}
	}
	return nil
}

func (t *term) check() error {
	if err := t.Head.check(); err != nil {
		return err
	}
	for _, u := range t.Tail {
		if err := u.Unary.check(); err != nil {
			return err
		}
	}
	return nil
}

func (u *unary) check() error {
	if u.Unary != nil {
		return u.Unary.check()
	}
	if err := u.Power.Base.check(); err != nil {
		return err
	}
	if u.Power.Exponent != nil {
		return u.Power.Exponent.check()
	}
	return nil
}

func (p *primary) check() error {
	switch {
	case p.Call != nil:
		fn, ok := functions[p.Call.Name]
		if !ok {
			return fmt.Errorf("unknown function %q", p.Call.Name)
		}
		if len(p.Call.Args) != fn.arity {
			return fmt.Errorf("%s takes %d argument(s), got %d", p.Call.Name, fn.arity, len(p.Call.Args))
		}
		for _, a := range p.Call.Args {
			if err := a.check(); err != nil {
				return err
			}
		}
	case p.Variable != nil:
		if *p.Variable != "X" && *p.Variable != "Y" {
			return fmt.Errorf("unknown variable %q (only X and Y are bound)", *p.Variable)
		}
	case p.Sub != nil:
		return p.Sub.check()
	}
	return nil
}

func (e *expression) eval(en env) (float64, error) {
	acc, err := e.Head.eval(en)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		v, err := t.Term.eval(en)
		if err != nil {
			return 0, err
		}
		if t.Op == "+" {
			acc += v
		} else {
			acc -= v
		}
	}
	return acc, nil
}

func (t *term) eval(en env) (float64, error) {
	acc, err := t.Head.eval(en)
	if err != nil {
		return 0, err
	}
	for _, u := range t.Tail {
		v, err := u.Unary.eval(en)
		if err != nil {
			return 0, err
		}
		switch u.Op {
		case "*":
			acc *= v
		case "/":
			if v == 0 {
				return 0, errDivByZero
			}
			acc /= v
		case "%":
			if v == 0 {
				return 0, errDivByZero
			}
			acc = math.Mod(acc, v)
		}
	}
	return acc, nil
}

func (u *unary) eval(en env) (float64, error) {
	if u.Unary != nil {
		v, err := u.Unary.eval(en)
		if err != nil {
			return 0, err
		}
		if u.Op == "-" {
			return -v, nil
		}
		return v, nil
	}

	base, err := u.Power.Base.eval(en)
	if err != nil {
		return 0, err
	}
	if u.Power.Exponent == nil {
		return base, nil
	}
	exp, err := u.Power.Exponent.eval(en)
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *primary) eval(en env) (float64, error) {
	switch {
	case p.Number != nil:
		return *p.Number, nil
	case p.Variable != nil:
		if *p.Variable == "X" {
			return en.x, nil
		}
		return en.y, nil
	case p.Sub != nil:
		return p.Sub.eval(en)
	case p.Call != nil:
		args := make([]float64, len(p.Call.Args))
		for i, a := range p.Call.Args {
			v, err := a.eval(en)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return functions[p.Call.Name].fn(args), nil
	}
	return 0, errors.New("empty operand")
}
