package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HGData/basex/internal/ir"
)

// ErrNotFound is returned when a compilation does not exist.
var ErrNotFound = errors.New("store: compilation not found")

const compilationColumns = `id, query, plan_hash, plan_zstd, clauses_before, clauses_after, deferred, seq`

// ReadCompilation returns the compilation with the given id.
func (s *Store) ReadCompilation(ctx context.Context, id string) (ir.CompilationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		WHERE id = ?
	`, id)
	rec, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.CompilationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// ListCompilations returns every compilation.
// Ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListCompilations(ctx context.Context) ([]ir.CompilationRecord, error) {
	return s.queryCompilations(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// FindByPlanHash returns the compilations whose plan has the given hash,
// in the same order as ListCompilations.
func (s *Store) FindByPlanHash(ctx context.Context, hash string) ([]ir.CompilationRecord, error) {
	return s.queryCompilations(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		WHERE plan_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
}

func (s *Store) queryCompilations(ctx context.Context, query string, args ...any) ([]ir.CompilationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	recs := []ir.CompilationRecord{}
	for rows.Next() {
		rec, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return recs, nil
}

// ReadRewrites returns the rewrite trace of a compilation in firing order.
func (s *Store) ReadRewrites(ctx context.Context, compilationID string) ([]ir.RewriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT compilation_id, seq, rule, detail
		FROM rewrites
		WHERE compilation_id = ?
		ORDER BY seq ASC
	`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer rows.Close()

	out := []ir.RewriteRecord{}
	for rows.Next() {
		var rw ir.RewriteRecord
		if err := rows.Scan(&rw.CompilationID, &rw.Seq, &rw.Rule, &rw.Detail); err != nil {
			return nil, fmt.Errorf("scan rewrite: %w", err)
		}
		out = append(out, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewrites: %w", err)
	}
	return out, nil
}

// RuleCount is the number of times a rewrite rule fired across all
// stored compilations.
type RuleCount struct {
	Rule  string `json:"rule"`
	Count int64  `json:"count"`
}

// RuleStats aggregates the stored rewrite traces per rule, most frequent
// first and by name on ties.
func (s *Store) RuleStats(ctx context.Context) ([]RuleCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule, COUNT(*) AS n
		FROM rewrites
		GROUP BY rule
		ORDER BY n DESC, rule COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rule stats: %w", err)
	}
	defer rows.Close()

	out := []RuleCount{}
	for rows.Next() {
		var rc RuleCount
		if err := rows.Scan(&rc.Rule, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan rule stats: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule stats: %w", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(sc scanner) (ir.CompilationRecord, error) {
	var (
		rec  ir.CompilationRecord
		blob []byte
	)
	err := sc.Scan(&rec.ID, &rec.Query, &rec.PlanHash, &blob,
		&rec.ClausesBefore, &rec.ClausesAfter, &rec.Deferred, &rec.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan compilation: %w", err)
	}
	if rec.Plan, err = decompressPlan(blob); err != nil {
		return rec, fmt.Errorf("compilation %s: %w", rec.ID, err)
	}
	return rec, nil
}
