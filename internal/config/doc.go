// Package config loads optimizer options from CUE files.
//
// An options file is plain CUE data:
//
//	max_iterations: 200
//	disabled_rules: ["slideLetsOut"]
//	parallelism:    8
//	seed:           42
//	log_level:      "info"
//	store:          "trace.db"
//	documents: "catalog.xml": "data/catalog.xml"
//
// Load unifies the file with an embedded schema (schema.cue), which rejects
// unknown fields and out-of-range values with their source position.
// Validate then checks what the schema cannot: rule names against the
// rewrite catalogue and paths against the file system, reporting E1xx codes.
package config
