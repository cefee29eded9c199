package ir

import (
	"github.com/shopspring/decimal"
)

// CmpOp is a general comparison operator.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CmpOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	default:
		return ">="
	}
}

// Swap returns the operator with its operands exchanged (a < b == b > a).
func (op CmpOp) Swap() CmpOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

func (op CmpOp) holds(c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "div"
	case OpIDiv:
		return "idiv"
	default:
		return "mod"
	}
}

// atom is an atomized item. Node content atomizes to an untyped string that
// is cast to the type of the other operand on comparison.
type atom struct {
	item    Item
	untyped bool
}

func atomize(it Item) atom {
	if n, ok := it.(*Node); ok {
		return atom{item: Str(n.String()), untyped: true}
	}
	return atom{item: it}
}

// Atomize returns the atomized value of a sequence.
func Atomize(s Seq) Seq {
	if len(s) == 0 {
		return Empty
	}
	out := make(Seq, len(s))
	for i, it := range s {
		out[i] = atomize(it).item
	}
	return out
}

// EBV computes the effective boolean value of a sequence.
func EBV(s Seq) (bool, error) {
	if len(s) == 0 {
		return false, nil
	}
	if _, ok := s[0].(*Node); ok {
		return true, nil
	}
	if len(s) > 1 {
		return false, Errorf(ErrCodeEBV, "effective boolean value undefined for sequence of %d items", len(s))
	}
	switch v := s[0].(type) {
	case Bool:
		return bool(v), nil
	case Str:
		return v != "", nil
	case Int:
		return v != 0, nil
	case Dec:
		return !v.IsZero(), nil
	default:
		return false, Errorf(ErrCodeEBV, "effective boolean value undefined for %s", s[0].Type())
	}
}

func toDecimal(it Item) (decimal.Decimal, bool) {
	switch v := it.(type) {
	case Int:
		return decimal.NewFromInt(int64(v)), true
	case Dec:
		return v.Decimal, true
	default:
		return decimal.Decimal{}, false
	}
}

func isNumeric(it Item) bool {
	t := it.Type()
	return t == TypeInteger || t == TypeDecimal
}

// castUntyped casts an untyped atom to the type of other.
func castUntyped(a atom, other Item) (Item, error) {
	if !a.untyped {
		return a.item, nil
	}
	s := string(a.item.(Str))
	switch other.Type() {
	case TypeInteger, TypeDecimal:
		d, err := ParseDec(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	case TypeBoolean:
		switch s {
		case "true", "1":
			return Bool(true), nil
		case "false", "0":
			return Bool(false), nil
		}
		return nil, Errorf(ErrCodeCast, "cannot cast %q to xs:boolean", s)
	default:
		return a.item, nil
	}
}

// CompareItems compares two atomic items, returning -1, 0 or 1.
// Integers are promoted to decimals when compared with decimals.
// Items of incomparable types raise XPTY0004.
func CompareItems(a, b Item) (int, error) {
	return compareAtoms(atomize(a), atomize(b))
}

func compareAtoms(a, b atom) (int, error) {
	x, err := castUntyped(a, b.item)
	if err != nil {
		return 0, err
	}
	y, err := castUntyped(b, a.item)
	if err != nil {
		return 0, err
	}
	if xi, ok := x.(Int); ok {
		if yi, ok := y.(Int); ok {
			switch {
			case xi < yi:
				return -1, nil
			case xi > yi:
				return 1, nil
			}
			return 0, nil
		}
	}
	if isNumeric(x) && isNumeric(y) {
		dx, _ := toDecimal(x)
		dy, _ := toDecimal(y)
		return dx.Cmp(dy), nil
	}
	switch xv := x.(type) {
	case Str:
		if yv, ok := y.(Str); ok {
			switch {
			case xv < yv:
				return -1, nil
			case xv > yv:
				return 1, nil
			}
			return 0, nil
		}
	case Bool:
		if yv, ok := y.(Bool); ok {
			switch {
			case xv == yv:
				return 0, nil
			case !bool(xv):
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, Errorf(ErrCodeType, "cannot compare %s with %s", x.Type(), y.Type())
}

// GeneralCompare evaluates an existential comparison: true iff some pair of
// items from a and b satisfies op.
func GeneralCompare(op CmpOp, a, b Seq) (bool, error) {
	for _, x := range a {
		ax := atomize(x)
		for _, y := range b {
			c, err := compareAtoms(ax, atomize(y))
			if err != nil {
				return false, err
			}
			if op.holds(c) {
				return true, nil
			}
		}
	}
	return false, nil
}

// numericOperand atomizes a singleton arithmetic operand.
// Returns nil for the empty sequence.
func numericOperand(s Seq) (Item, error) {
	switch len(s) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, Errorf(ErrCodeType, "arithmetic operand is a sequence of %d items", len(s))
	}
	a := atomize(s[0])
	if a.untyped {
		return ParseDec(string(a.item.(Str)))
	}
	if !isNumeric(a.item) {
		return nil, Errorf(ErrCodeType, "arithmetic operand of type %s", a.item.Type())
	}
	return a.item, nil
}

// Arith applies an arithmetic operator. An empty operand yields the empty
// sequence. Integer division with div yields xs:decimal.
func Arith(op ArithOp, a, b Seq) (Seq, error) {
	x, err := numericOperand(a)
	if err != nil {
		return nil, err
	}
	y, err := numericOperand(b)
	if err != nil {
		return nil, err
	}
	if x == nil || y == nil {
		return Empty, nil
	}
	it, err := arithItems(op, x, y)
	if err != nil {
		return nil, err
	}
	return Single(it), nil
}

func arithItems(op ArithOp, x, y Item) (Item, error) {
	xi, xInt := x.(Int)
	yi, yInt := y.(Int)
	if xInt && yInt {
		switch op {
		case OpAdd:
			return xi + yi, nil
		case OpSub:
			return xi - yi, nil
		case OpMul:
			return xi * yi, nil
		case OpIDiv:
			if yi == 0 {
				return nil, Errorf(ErrCodeDivZero, "integer division by zero")
			}
			return xi / yi, nil
		case OpMod:
			if yi == 0 {
				return nil, Errorf(ErrCodeDivZero, "modulo by zero")
			}
			return xi % yi, nil
		}
	}
	dx, _ := toDecimal(x)
	dy, _ := toDecimal(y)
	switch op {
	case OpAdd:
		return NewDec(dx.Add(dy)), nil
	case OpSub:
		return NewDec(dx.Sub(dy)), nil
	case OpMul:
		return NewDec(dx.Mul(dy)), nil
	}
	if dy.IsZero() {
		return nil, Errorf(ErrCodeDivZero, "division by zero")
	}
	switch op {
	case OpDiv:
		return NewDec(dx.Div(dy)), nil
	case OpIDiv:
		return Int(dx.Div(dy).Truncate(0).IntPart()), nil
	default:
		return NewDec(dx.Mod(dy)), nil
	}
}

// DeepEqual reports whether two items are deep-equal. Numbers compare by
// value across integer and decimal; nodes compare by name and content.
func DeepEqual(a, b Item) bool {
	if na, ok := a.(*Node); ok {
		nb, ok := b.(*Node)
		if !ok || na.Name != nb.Name || na.Document != nb.Document || len(na.Children) != len(nb.Children) {
			return false
		}
		for i := range na.Children {
			if !DeepEqual(na.Children[i], nb.Children[i]) {
				return false
			}
		}
		return true
	}
	if _, ok := b.(*Node); ok {
		return false
	}
	if isNumeric(a) != isNumeric(b) {
		return false
	}
	if !isNumeric(a) && a.Type() != b.Type() {
		return false
	}
	c, err := CompareItems(a, b)
	return err == nil && c == 0
}
