package expr

import (
	"fmt"
	"sync/atomic"

	"github.com/HGData/basex/internal/ir"
)

// varIDs is the process-wide variable id allocator. Ids are never reused,
// so variables from independent compilations never collide.
var varIDs atomic.Int64

// Var is a binding slot.
//
// Declared is the "as" type, nil if none. Static is the refined type of the
// values actually bound, computed from the binding expression at compile
// time. A declared type that Static already satisfies needs no runtime
// check.
type Var struct {
	ID       int64
	Name     string
	Declared *SeqType
	Static   SeqType

	proven bool
}

// NewVar allocates a variable with a fresh id.
func NewVar(name string, declared *SeqType) *Var {
	v := &Var{ID: varIDs.Add(1), Name: name, Declared: declared, Static: ItemStar}
	if declared != nil {
		v.Static = *declared
	}
	return v
}

// ChecksType reports whether binding a value requires a runtime type check.
func (v *Var) ChecksType() bool {
	return v.Declared != nil && !v.proven
}

// Refine records the static type of the expression bound to v. If the
// declared type is thereby guaranteed the runtime check is dropped.
func (v *Var) Refine(st SeqType) {
	if v.Declared == nil {
		v.Static = st
		return
	}
	if st.InstanceOf(*v.Declared) {
		v.proven = true
		v.Static = st
	}
}

// CheckType fails with a static type error if e is a value that can never
// satisfy the declared type.
func (v *Var) CheckType(e Expr) error {
	if v.Declared == nil {
		return nil
	}
	if val, ok := e.(*Value); ok && !v.Declared.Matches(val.Seq) {
		return ir.TypeErrorf("%s as %s cannot be bound to %s", v, v.Declared, TypeOf(val.Seq))
	}
	return nil
}

// Checked returns e wrapped in a runtime type check if v requires one.
func (v *Var) Checked(e Expr) (Expr, error) {
	if err := v.CheckType(e); err != nil {
		return nil, err
	}
	if !v.ChecksType() || e.Type().InstanceOf(*v.Declared) {
		return e, nil
	}
	return &TypeCheck{Expr: e, Want: *v.Declared}, nil
}

// Check validates a bound value at runtime.
func (v *Var) Check(s ir.Seq) error {
	if v.ChecksType() && !v.Declared.Matches(s) {
		return ir.Errorf(ir.ErrCodeType, "%s as %s cannot be bound to %s", v, v.Declared, TypeOf(s))
	}
	return nil
}

func (v *Var) String() string { return "$" + v.Name }

// Debug includes the variable id, for diagnostics.
func (v *Var) Debug() string { return fmt.Sprintf("$%s_%d", v.Name, v.ID) }

// VarMap maps original variables to their copies while a subtree is being
// copied. The same map must be threaded through the whole copy.
type VarMap map[int64]*Var

// Copy allocates a copy of v and records the mapping.
func (vm VarMap) Copy(v *Var) *Var {
	if v == nil {
		return nil
	}
	nv := &Var{ID: varIDs.Add(1), Name: v.Name, Declared: v.Declared, Static: v.Static, proven: v.proven}
	vm[v.ID] = nv
	return nv
}

// Get returns the copy of v, or v itself if it was bound outside the copied
// subtree.
func (vm VarMap) Get(v *Var) *Var {
	if nv, ok := vm[v.ID]; ok {
		return nv
	}
	return v
}
