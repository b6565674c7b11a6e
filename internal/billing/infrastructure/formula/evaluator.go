package formula

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/shopspring/decimal"

	billing "residential-cloud/internal/billing/domain"
)

const maxFormulaLength = 256

var allowedOperators = map[string]struct{}{
	"+": {}, "-": {}, "*": {}, "/": {},
}

var variables = map[string]struct{}{
	"baseAmount":  {},
	"area":        {},
	"coefficient": {},
}

// ErrDivisionByZero is returned when a formula divides by zero.
var ErrDivisionByZero = errors.New("formula: division by zero")

// Evaluator parses and evaluates fee formulas. Only numeric literals, the
// variables baseAmount, area and coefficient, the four arithmetic operators,
// unary sign and parentheses are accepted. Evaluation is decimal throughout.
type Evaluator struct {
	mu    sync.RWMutex
	trees map[string]ast.Node
}

// NewEvaluator constructs an evaluator with an empty parse cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{trees: make(map[string]ast.Node)}
}

// Validate reports whether formula is an accepted arithmetic expression.
func (e *Evaluator) Validate(formula string) error {
	_, err := e.tree(formula)
	return err
}

// Evaluate computes formula with vars.
func (e *Evaluator) Evaluate(formula string, vars billing.FormulaVars) (decimal.Decimal, error) {
	node, err := e.tree(formula)
	if err != nil {
		return decimal.Zero, err
	}
	return eval(node, env(vars))
}

func (e *Evaluator) tree(formula string) (ast.Node, error) {
	if e == nil {
		return nil, errors.New("formula: nil evaluator")
	}
	e.mu.RLock()
	node, ok := e.trees[formula]
	e.mu.RUnlock()
	if ok {
		return node, nil
	}

	if formula == "" {
		return nil, errors.New("formula: empty expression")
	}
	if len(formula) > maxFormulaLength {
		return nil, errors.New("formula: expression too long")
	}
	tree, err := parser.Parse(formula)
	if err != nil {
		return nil, fmt.Errorf("formula: %w", err)
	}
	check := &arithmeticOnly{}
	ast.Walk(&tree.Node, check)
	if check.err != nil {
		return nil, check.err
	}

	e.mu.Lock()
	e.trees[formula] = tree.Node
	e.mu.Unlock()
	return tree.Node, nil
}

func env(vars billing.FormulaVars) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"baseAmount":  vars.BaseAmount,
		"area":        vars.Area,
		"coefficient": vars.Coefficient,
	}
}

// eval walks a tree already accepted by arithmeticOnly.
func eval(node ast.Node, vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return decimal.NewFromInt(int64(n.Value)), nil
	case *ast.FloatNode:
		// NewFromFloat yields the shortest decimal that round-trips, which is
		// the literal as written.
		return decimal.NewFromFloat(n.Value), nil
	case *ast.IdentifierNode:
		value, ok := vars[n.Value]
		if !ok {
			return decimal.Zero, fmt.Errorf("formula: unknown variable %q", n.Value)
		}
		return value, nil
	case *ast.UnaryNode:
		value, err := eval(n.Node, vars)
		if err != nil {
			return decimal.Zero, err
		}
		if n.Operator == "-" {
			return value.Neg(), nil
		}
		return value, nil
	case *ast.BinaryNode:
		left, err := eval(n.Left, vars)
		if err != nil {
			return decimal.Zero, err
		}
		right, err := eval(n.Right, vars)
		if err != nil {
			return decimal.Zero, err
		}
		switch n.Operator {
		case "+":
			return left.Add(right), nil
		case "-":
			return left.Sub(right), nil
		case "*":
			return left.Mul(right), nil
		case "/":
			if right.IsZero() {
				return decimal.Zero, ErrDivisionByZero
			}
			return left.Div(right), nil
		}
		return decimal.Zero, fmt.Errorf("formula: operator %q not allowed", n.Operator)
	default:
		return decimal.Zero, fmt.Errorf("formula: %T not allowed", n)
	}
}

type arithmeticOnly struct {
	err error
}

func (v *arithmeticOnly) Visit(node *ast.Node) {
	if v.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.IntegerNode, *ast.FloatNode:
	case *ast.IdentifierNode:
		if _, ok := variables[n.Value]; !ok {
			v.err = fmt.Errorf("formula: unknown variable %q", n.Value)
		}
	case *ast.BinaryNode:
		if _, ok := allowedOperators[n.Operator]; !ok {
			v.err = fmt.Errorf("formula: operator %q not allowed", n.Operator)
		}
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			v.err = fmt.Errorf("formula: operator %q not allowed", n.Operator)
		}
	default:
		v.err = fmt.Errorf("formula: %T not allowed", n)
	}
}
