package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// uniqueColumns are the user columns guarded by a unique index.
var uniqueColumns = []string{"google_id", "email"}

// uniqueViolation reports whether err is a unique index violation and, when
// the driver message names it, which user column collided. gorm's translated
// ErrDuplicatedKey carries no detail, so column may be empty.
func uniqueViolation(err error) (column string, ok bool) {
	if err == nil {
		return "", false
	}

	var detail string
	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pgErr):
		if pgErr.Code != "23505" {
			return "", false
		}
		detail = pgErr.ConstraintName + " " + pgErr.Detail
	case errors.As(err, &myErr):
		if myErr.Number != 1062 {
			return "", false
		}
		detail = myErr.Message
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "", true
	default:
		// sqlite: "UNIQUE constraint failed: users.email"
		detail = err.Error()
		if !strings.Contains(strings.ToLower(detail), "unique constraint failed") {
			return "", false
		}
	}

	lower := strings.ToLower(detail)
	for _, col := range uniqueColumns {
		if strings.Contains(lower, col) {
			return col, true
		}
	}
	return "", true
}
