// Package expr provides the expression layer the FLWOR optimizer works on.
//
// Every node implements Expr: the narrow capability interface the clause
// rewrites consult (side-effect flags, static size, compile, optimize, copy
// with variable remapping, usage counting, inlining) plus evaluation.
//
// Nodes are never mutated after construction. Compile, Optimize and Inline
// return new nodes, which is what lets a rewrite either fully apply or leave
// the original tree untouched.
//
// Variables are identified by process-unique ids handed out by NewVar;
// Copy remaps them through an explicit VarMap so a copied subtree never
// shares a binding slot with its original.
package expr
