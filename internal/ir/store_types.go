package ir

// NOTE: These are store-layer records. The rewrite trace is observational
// only; nothing in the optimizer reads it back.

// CompilationRecord is one persisted compilation.
type CompilationRecord struct {
	ID            string `json:"id"` // UUIDv7 compile-unit id
	Query         string `json:"query"`
	PlanHash      string `json:"plan_hash"`
	Plan          string `json:"plan"`
	ClausesBefore int    `json:"clauses_before"`
	ClausesAfter  int    `json:"clauses_after"`
	Deferred      int    `json:"deferred"` // Conditional errors downgraded at compile time
	Seq           int64  `json:"seq"`      // Logical clock
}

// RewriteRecord is one fired rewrite of a compilation.
type RewriteRecord struct {
	CompilationID string `json:"compilation_id"`
	Seq           int64  `json:"seq"`
	Rule          string `json:"rule"`
	Detail        string `json:"detail"`
}
