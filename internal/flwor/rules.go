package flwor

import (
	"github.com/HGData/basex/internal/expr"
)

// ruleFunc is one rewrite rule. It reports whether it changed anything;
// when it did not, the returned pipeline is the input.
type ruleFunc func(cc *expr.Context, p pipeline) (pipeline, bool, error)

type rule struct {
	name  string
	apply ruleFunc
}

// rules is the rewrite catalogue in application order. It is filled in
// init because several rules optimize nested FLWOR expressions, which runs
// the catalogue again.
var rules []rule

func init() {
	rules = []rule{
		{"flattenAnd", flattenAnd},
		{"flattenReturn", flattenReturn},
		{"flattenFor", flattenFor},
		{"unnestFLWR", unnestFLWR},
		{"forToLet", forToLet},
		{"inlineLets", inlineLets},
		{"slideLetsOut", slideLetsOut},
		{"unusedVars", unusedVars},
		{"cleanDeadVars", cleanDeadVars},
		{"optimizeWhere", optimizeWhere},
		{"optimizePos", optimizePos},
		{"unnestLets", unnestLets},
		{"mergeLastClause", mergeLastClause},
	}
}

// Rules returns the names of the rewrite rules in the order they are
// tried.
func Rules() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.name
	}
	return out
}

// IsRule reports whether name is a known rewrite rule.
func IsRule(name string) bool {
	for _, r := range rules {
		if r.name == name {
			return true
		}
	}
	return false
}
