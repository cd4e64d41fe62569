package sqlstore

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/docmap/internal/orm/collection"
)

// convertError maps driver errors to collection errors
func convertError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return collection.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.Join(collection.ErrDuplicateID, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) &&
		(liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return errors.Join(collection.ErrDuplicateID, err)
	}

	return err
}

// isTransient reports whether an operation failing with err may succeed when
// retried: deadlocks, serialization failures and busy sqlite databases
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"deadlock detected",
		"could not serialize access",
		"database is locked",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
