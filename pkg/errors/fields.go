package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// LogFields flattens err into structured log fields: its code, the unwrap
// chain, and the Postgres diagnostics when a driver error is inside.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error_retryable": IsRetryable(err)}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	fields["error_chain"] = chain

	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		for key, value := range map[string]string{
			"pg_code":       pgErr.Code,
			"pg_constraint": pgErr.ConstraintName,
			"pg_table":      pgErr.TableName,
			"pg_column":     pgErr.ColumnName,
			"pg_detail":     pgErr.Detail,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
