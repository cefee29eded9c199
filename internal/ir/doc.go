// Package ir provides the item and sequence model shared by the query
// compiler and evaluator.
//
// ir imports nothing internal; every other internal package builds on it.
//
// Key design constraints:
//   - NO binary floats: numbers are xs:integer (int64) or xs:decimal
//     (arbitrary precision via shopspring/decimal)
//   - Items are immutable once constructed and may be shared freely
//   - Errors carry XQuery-style codes (QueryError) so the original
//     diagnostic survives any amount of wrapping
//   - All JSON tags use snake_case
package ir
