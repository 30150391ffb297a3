package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Sentinel errors returned by ledger repositories. Services translate them
// into application errors.
var (
	ErrDuplicate       = errors.New("duplicate row")
	ErrNoCapacity      = errors.New("no seats available")
	ErrCapacityTooLow  = errors.New("capacity below seats taken")
	ErrStillReferenced = errors.New("row still referenced")
	ErrClosed          = errors.New("offering closed")
	// ErrMissingReference reports an insert or update naming a row that does
	// not exist, such as an unknown course or teacher.
	ErrMissingReference = errors.New("referenced row missing")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

func isUniqueViolation(err error) bool { return isPQCode(err, pqUniqueViolation) }

func isForeignKeyViolation(err error) bool { return isPQCode(err, pqForeignKeyViolation) }

// where accumulates numbered conditions for dynamic list queries.
type where struct {
	conditions []string
	args       []interface{}
}

// add appends a condition whose single "?" is replaced by the next $n.
func (w *where) add(condition string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, strings.Replace(condition, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *where) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// listWindow resolves ordering and paging for list queries. sortBy must be a
// key of allowed; anything else falls back to fallback.
func listWindow(allowed map[string]string, sortBy, fallback, sortOrder, defaultOrder string, page, size int) string {
	orderBy, ok := allowed[sortBy]
	if !ok {
		orderBy = allowed[fallback]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = defaultOrder
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return fmt.Sprintf(" ORDER BY %s %s LIMIT %d OFFSET %d", orderBy, order, size, (page-1)*size)
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}
