package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoStore is returned by Replay when the engine has no store.
var ErrNoStore = errors.New("engine: no store configured")

// ReplayMismatchError reports that recompiling a stored query produced a
// different plan than the one on record: the rule set or the engine
// changed since the compilation was stored.
type ReplayMismatchError struct {
	ID     string
	Stored string // plan on record
	Got    string // plan now
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay %s: plan changed\nstored: %s\ngot:    %s", e.ID, e.Stored, e.Got)
}

// Replay recompiles a stored compilation under the same id and verifies
// that the optimizer still produces the recorded plan. The replayed plan
// is not written back.
//
// Replay is deterministic because plans carry no variable ids or wall
// clock values: the same query and rule set always render the same plan.
func (e *Engine) Replay(ctx context.Context, id string) (*Plan, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	rec, err := e.store.ReadCompilation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	plan, err := e.compile(ctx, id, rec.Query)
	if err != nil {
		return nil, err
	}
	if plan.Hash != rec.PlanHash {
		return plan, &ReplayMismatchError{ID: id, Stored: rec.Plan, Got: plan.String()}
	}
	return plan, nil
}
