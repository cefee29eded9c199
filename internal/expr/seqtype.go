package expr

import (
	"strings"

	"github.com/HGData/basex/internal/ir"
)

// Occurrence is the cardinality part of a sequence type.
type Occurrence uint8

const (
	// OccZero is empty-sequence().
	OccZero Occurrence = iota
	// OccOne is exactly one item.
	OccOne
	// OccZeroOrOne is "?".
	OccZeroOrOne
	// OccZeroOrMore is "*".
	OccZeroOrMore
	// OccOneOrMore is "+".
	OccOneOrMore
)

// Bounds returns the (min, max) item counts of the occurrence; max -1 means
// unbounded.
func (o Occurrence) Bounds() (int64, int64) {
	switch o {
	case OccZero:
		return 0, 0
	case OccOne:
		return 1, 1
	case OccZeroOrOne:
		return 0, 1
	case OccOneOrMore:
		return 1, -1
	default:
		return 0, -1
	}
}

// OccurrenceOf returns the narrowest occurrence covering lo to hi items;
// hi -1 means unbounded.
func OccurrenceOf(lo, hi int64) Occurrence {
	switch {
	case hi == 0:
		return OccZero
	case lo >= 1 && hi == 1:
		return OccOne
	case hi == 1:
		return OccZeroOrOne
	case lo >= 1:
		return OccOneOrMore
	default:
		return OccZeroOrMore
	}
}

// SeqType is a sequence type: item type plus occurrence.
type SeqType struct {
	Item ir.ItemType
	Occ  Occurrence
}

// Common sequence types.
var (
	ItemStar    = SeqType{Item: ir.TypeItem, Occ: OccZeroOrMore}
	EmptySeq    = SeqType{Item: ir.TypeItem, Occ: OccZero}
	BooleanOne  = SeqType{Item: ir.TypeBoolean, Occ: OccOne}
	IntegerOne  = SeqType{Item: ir.TypeInteger, Occ: OccOne}
	StringOne   = SeqType{Item: ir.TypeString, Occ: OccOne}
	DecimalOne  = SeqType{Item: ir.TypeDecimal, Occ: OccOne}
	NodeStar    = SeqType{Item: ir.TypeNode, Occ: OccZeroOrMore}
	IntegerStar = SeqType{Item: ir.TypeInteger, Occ: OccZeroOrMore}
)

// WithOcc returns t with a different occurrence.
func (t SeqType) WithOcc(o Occurrence) SeqType {
	t.Occ = o
	return t
}

// One reports whether the type guarantees exactly one item.
func (t SeqType) One() bool { return t.Occ == OccOne }

// Numeric reports whether items of this type may be numbers.
func (t SeqType) Numeric() bool {
	return t.Item == ir.TypeItem || t.Item == ir.TypeInteger || t.Item == ir.TypeDecimal
}

// InstanceOf reports whether every value of t is also a value of o.
func (t SeqType) InstanceOf(o SeqType) bool {
	tlo, thi := t.Occ.Bounds()
	olo, ohi := o.Occ.Bounds()
	if tlo < olo || (ohi >= 0 && (thi < 0 || thi > ohi)) {
		return false
	}
	return t.Occ == OccZero || t.Item.InstanceOf(o.Item)
}

// Matches reports whether a concrete sequence is an instance of t.
func (t SeqType) Matches(s ir.Seq) bool {
	lo, hi := t.Occ.Bounds()
	n := int64(len(s))
	if n < lo || (hi >= 0 && n > hi) {
		return false
	}
	for _, it := range s {
		if !it.Type().InstanceOf(t.Item) {
			return false
		}
	}
	return true
}

// Union returns the smallest sequence type covering both types when their
// values are concatenated.
func (t SeqType) Union(o SeqType) SeqType {
	item := t.Item
	switch {
	case t.Occ == OccZero:
		item = o.Item
	case o.Occ == OccZero:
	case t.Item.InstanceOf(o.Item):
		item = o.Item
	case o.Item.InstanceOf(t.Item):
	default:
		item = ir.TypeItem
	}
	tlo, thi := t.Occ.Bounds()
	olo, ohi := o.Occ.Bounds()
	hi := int64(-1)
	if thi >= 0 && ohi >= 0 {
		hi = thi + ohi
	}
	return SeqType{Item: item, Occ: OccurrenceOf(tlo+olo, hi)}
}

// Choice returns the type of a value that is either of type t or o.
func (t SeqType) Choice(o SeqType) SeqType {
	u := t.Union(o)
	tlo, thi := t.Occ.Bounds()
	olo, ohi := o.Occ.Bounds()
	lo, hi := min(tlo, olo), max(thi, ohi)
	if thi < 0 || ohi < 0 {
		hi = -1
	}
	u.Occ = OccurrenceOf(lo, hi)
	return u
}

func (t SeqType) String() string {
	if t.Occ == OccZero {
		return "empty-sequence()"
	}
	s := t.Item.String()
	switch t.Occ {
	case OccZeroOrOne:
		s += "?"
	case OccZeroOrMore:
		s += "*"
	case OccOneOrMore:
		s += "+"
	}
	return s
}

// TypeOf returns the most specific sequence type of a concrete value.
func TypeOf(s ir.Seq) SeqType {
	if len(s) == 0 {
		return EmptySeq
	}
	item := s[0].Type()
	for _, it := range s[1:] {
		switch t := it.Type(); {
		case t.InstanceOf(item):
		case item.InstanceOf(t):
			item = t
		default:
			item = ir.TypeItem
		}
	}
	occ := OccOne
	if len(s) > 1 {
		occ = OccOneOrMore
	}
	return SeqType{Item: item, Occ: occ}
}

// ParseSeqType parses a sequence type such as "xs:integer*" or "node()?".
func ParseSeqType(s string) (SeqType, error) {
	s = strings.TrimSpace(s)
	if s == "empty-sequence()" {
		return EmptySeq, nil
	}
	occ := OccOne
	switch {
	case strings.HasSuffix(s, "?"):
		occ = OccZeroOrOne
	case strings.HasSuffix(s, "*"):
		occ = OccZeroOrMore
	case strings.HasSuffix(s, "+"):
		occ = OccOneOrMore
	}
	if occ != OccOne {
		s = strings.TrimSpace(s[:len(s)-1])
	}
	var item ir.ItemType
	switch s {
	case "item()":
		item = ir.TypeItem
	case "xs:integer":
		item = ir.TypeInteger
	case "xs:decimal":
		item = ir.TypeDecimal
	case "xs:string":
		item = ir.TypeString
	case "xs:boolean":
		item = ir.TypeBoolean
	case "node()", "element()":
		item = ir.TypeNode
	default:
		return SeqType{}, ir.StaticErrorf(ir.ErrCodeSyntax, "unknown sequence type %q", s)
	}
	return SeqType{Item: item, Occ: occ}, nil
}
