package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dekarrin/tabula"
	"modernc.org/sqlite"
)

// sqlite primary result codes that are given special handling.
const (
	sqliteGenericError = 1
	sqliteConstraint   = 19
)

func convertDBError(err error) error {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		primaryCode := sqliteErr.Code() & 0xff
		if primaryCode == sqliteConstraint {
			// preserve the error message for constraints violations
			return tabula.NewError(tabula.ErrConstraintViolation.Error(), err, tabula.ErrConstraintViolation)
		} else if primaryCode == sqliteGenericError {
			// 1 is a generic error and thus the string is not descriptive, so
			// do not use the error code string
			return err
		}

		return tabula.NewError(sqlite.ErrorCodeString[sqliteErr.Code()], err)
	} else if errors.Is(err, sql.ErrNoRows) {
		return tabula.ErrNotFound
	}

	return err
}

// WrapDBError creates a new tabula.Error that wraps the given error as a cause
// and automatically adds tabula.ErrDB as another cause. A message may be
// provided if desired with msg, but it may be left as "". It returns nil if err
// is nil.
//
// The provided error being wrapped will itself be converted to an Error of the
// approriate kind if possible; e.g. SQLite errors for a failed UNIQUE or
// PRIMARY KEY constraint are converted to an Error that returns true for
// errors.Is(err, tabula.ErrConstraintViolation), and sql.ErrNoRows is converted
// to tabula.ErrNotFound.
//
// msg, if provided, is used to create the msg of the error by calling
// fmt.Sprint.
func WrapDBError(err error, msg ...any) error {
	if err == nil {
		return nil
	}

	err = convertDBError(err)

	var errMsg string
	if len(msg) > 0 {
		errMsg = fmt.Sprint(msg...)
	}

	return tabula.NewError(errMsg, err, tabula.ErrDB)
}
