package hostapi

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// The database namespace answers in envelopes, never traps: a failed query
// is data the guest inspects, not a fault that kills the request. Statements
// route through the request's transaction handle, which picks the open
// transaction or the shared pool.
func bindDatabase(b *binder) {
	b.fn(wireEnv, "_db_query", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		query := e.str(stack, 0)
		args, err := decodeParams(e.str(stack, 2))
		if err != nil {
			stack[0] = e.out(envFail(codeValidation, "params must be a JSON array"))
			return
		}

		rows, err := e.State.Tx.Query(ctx, query, args...)
		if err != nil {
			stack[0] = e.out(envFail(dbErrorCode(ctx, err), err.Error()))
			return
		}
		defer rows.Close()

		data, err := scanRows(rows)
		if err != nil {
			stack[0] = e.out(envFail(codeDBError, err.Error()))
			return
		}
		stack[0] = e.out(envOK(data))
	}))

	b.fn(wireEnv, "_db_execute", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		query := e.str(stack, 0)
		args, err := decodeParams(e.str(stack, 2))
		if err != nil {
			stack[0] = api.EncodeI64(-1)
			return
		}

		res, err := e.State.Tx.Exec(ctx, query, args...)
		if err != nil {
			Logger().Debug("execute failed", zap.Error(err))
			stack[0] = api.EncodeI64(-1)
			return
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		stack[0] = uint64(affected)
	}))

	b.fn(wireEnv, "_db_begin", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if err := e.State.Tx.Begin(ctx); err != nil {
			Logger().Debug("begin rejected", zap.Error(err))
			stack[0] = 0
			return
		}
		stack[0] = 1
	}))

	b.fn(wireEnv, "_db_commit", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if err := e.State.Tx.Commit(); err != nil {
			Logger().Debug("commit rejected", zap.Error(err))
			stack[0] = 0
			return
		}
		stack[0] = 1
	}))

	b.fn(wireEnv, "_db_rollback", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if err := e.State.Tx.Rollback(); err != nil {
			Logger().Debug("rollback rejected", zap.Error(err))
			stack[0] = 0
			return
		}
		stack[0] = 1
	}))
}

// decodeParams parses the JSON parameter array guests pass alongside SQL.
// Empty input means no parameters.
func decodeParams(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// scanRows materializes a result set as one map per row, with byte slices
// folded to strings so the envelope encodes text instead of base64.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	values := make([]any, len(cols))
	scan := make([]any, len(cols))
	for i := range values {
		scan[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if raw, ok := v.([]byte); ok {
				v = string(raw)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// dbErrorCode distinguishes deadline expiry from everything else so guests
// can tell a slow statement from a broken one.
func dbErrorCode(ctx context.Context, err error) string {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return codeTimeout
	}
	return codeDBError
}
