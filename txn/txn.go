// Package txn scopes one database transaction to one request. The handle is
// a small state machine: guests open at most one transaction at a time,
// commit or roll it back explicitly, and the server settles whatever is left
// open when the request ends: on the normal path, on handler failure, and
// on client disconnect alike.
package txn

import (
	"context"
	"database/sql"

	"github.com/hostbridge/wasm-bridge/errors"
)

// State of a Handle.
type State int

const (
	StateNone State = iota
	StateOpen
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Handle routes a request's statements through its open transaction when one
// exists, else directly through the shared pool. Confined to the goroutine
// running the request.
type Handle struct {
	db    *sql.DB
	tx    *sql.Tx
	state State
}

// New binds a handle to the shared database pool. db may be nil when the
// server runs without a database; statement calls then report not-initialized.
func New(db *sql.DB) *Handle {
	return &Handle{db: db, state: StateNone}
}

// State returns the handle's current state.
func (h *Handle) State() State { return h.state }

// Begin opens a transaction. Reported and non-fatal when one is already
// open, there is no implicit nesting. After a commit or rollback the handle may
// begin again; at most one transaction is ever open.
func (h *Handle) Begin(ctx context.Context) error {
	if h.db == nil {
		return errors.NotInitialized(errors.PhaseResource, "database")
	}
	if h.state == StateOpen {
		return errors.State("transaction already open")
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Resource("begin transaction", err)
	}
	h.tx = tx
	h.state = StateOpen
	return nil
}

// Commit commits the open transaction. The handle turns terminal even when
// the commit itself fails; a failed commit cannot be retried.
func (h *Handle) Commit() error {
	if h.state != StateOpen {
		return errors.State("commit in state %s", h.state)
	}
	err := h.tx.Commit()
	h.tx = nil
	h.state = StateCommitted
	if err != nil {
		return errors.Resource("commit transaction", err)
	}
	return nil
}

// Rollback rolls back the open transaction.
func (h *Handle) Rollback() error {
	if h.state != StateOpen {
		return errors.State("rollback in state %s", h.state)
	}
	err := h.tx.Rollback()
	h.tx = nil
	h.state = StateRolledBack
	if err != nil {
		return errors.Resource("rollback transaction", err)
	}
	return nil
}

// Exec runs a statement through the open transaction, else the pool.
func (h *Handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if h.state == StateOpen {
		return h.tx.ExecContext(ctx, query, args...)
	}
	if h.db == nil {
		return nil, errors.NotInitialized(errors.PhaseResource, "database")
	}
	return h.db.ExecContext(ctx, query, args...)
}

// Query runs a query through the open transaction, else the pool.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if h.state == StateOpen {
		return h.tx.QueryContext(ctx, query, args...)
	}
	if h.db == nil {
		return nil, errors.NotInitialized(errors.PhaseResource, "database")
	}
	return h.db.QueryContext(ctx, query, args...)
}

// Finish settles the handle at request completion: a still-open transaction
// is rolled back so no partial work commits silently and no connection
// leaks. Reports whether a rollback happened.
func (h *Handle) Finish() bool {
	if h.state != StateOpen {
		return false
	}
	_ = h.tx.Rollback()
	h.tx = nil
	h.state = StateRolledBack
	return true
}
