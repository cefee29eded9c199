package ir

// Version constants for the plan format and engine.
const (
	// PlanVersion is the rendered plan format version. It is mixed into
	// PlanHash so hashes change when the rendering changes.
	PlanVersion = "1"

	// EngineVersion is the optimizer version.
	EngineVersion = "0.1.0"
)
