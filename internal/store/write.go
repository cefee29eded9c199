package store

import (
	"context"
	"fmt"

	"github.com/HGData/basex/internal/ir"
)

// WriteCompilation persists a compilation and its rewrite trace in a
// single transaction. Uses ON CONFLICT(id) DO NOTHING for idempotency:
// writing the same compilation twice keeps the first copy and reports
// inserted=false.
func (s *Store) WriteCompilation(
	ctx context.Context,
	rec ir.CompilationRecord,
	rewrites []ir.RewriteRecord,
) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write compilation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO compilations
		(id, query, plan_hash, plan_zstd, clauses_before, clauses_after, deferred, seq, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Query,
		rec.PlanHash,
		compressPlan(rec.Plan),
		rec.ClausesBefore,
		rec.ClausesAfter,
		rec.Deferred,
		rec.Seq,
		ir.EngineVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write compilation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write compilation: rows affected: %w", err)
	}
	if n == 0 {
		return false, tx.Commit()
	}

	for _, rw := range rewrites {
		if rw.CompilationID != rec.ID {
			return false, fmt.Errorf("write compilation: rewrite %d belongs to %q, not %q",
				rw.Seq, rw.CompilationID, rec.ID)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rewrites (compilation_id, seq, rule, detail)
			VALUES (?, ?, ?, ?)
		`, rw.CompilationID, rw.Seq, rw.Rule, rw.Detail)
		if err != nil {
			return false, fmt.Errorf("write rewrite %d: %w", rw.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write compilation: commit: %w", err)
	}
	return true, nil
}

// DeleteCompilation removes a compilation and, by cascade, its rewrites.
func (s *Store) DeleteCompilation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM compilations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete compilation: %w", err)
	}
	return nil
}
