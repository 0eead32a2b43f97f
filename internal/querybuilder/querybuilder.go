// Package querybuilder turns optional list filters into a parameterized SQL
// fragment. Conditions are AND-chained in insertion order; GROUP BY precedes
// ORDER BY, which precedes LIMIT/OFFSET.
package querybuilder

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
)

type Op string

const (
	Eq  Op = "="
	Gte Op = ">="
	Lte Op = "<="
	// Like passes the value through untouched; the caller owns the wildcards.
	Like     Op = "LIKE"
	Contains Op = "LIKE%_%"
	Prefix   Op = "LIKE_%"
	Suffix   Op = "LIKE%_"
)

var ErrUnknownOrder = errors.New("querybuilder: unknown order column")

type Condition struct {
	Column string
	Op     Op
	Value  any
}

type Query struct {
	conds   []Condition
	groupBy []string
	orderBy string
	asc     bool
	limit   int
	offset  int
}

func New() *Query { return &Query{} }

// Where appends a condition. A nil value, a nil pointer or a non-pointer zero
// value is skipped so optional filters can be passed straight through; a
// non-nil pointer is always applied, even when it points at a zero value.
func (q *Query) Where(column string, op Op, value any) *Query {
	v, ok := effectiveValue(value)
	if !ok {
		return q
	}
	q.conds = append(q.conds, Condition{Column: column, Op: op, Value: v})
	return q
}

func (q *Query) GroupBy(columns ...string) *Query {
	q.groupBy = append(q.groupBy, columns...)
	return q
}

// OrderBy sets the sort column. Callers resolve it through Resolve first so
// only whitelisted identifiers ever reach the SQL text.
func (q *Query) OrderBy(column string, asc bool) *Query {
	q.orderBy = column
	q.asc = asc
	return q
}

// Page sets LIMIT/OFFSET. A non-positive limit means no limit.
func (q *Query) Page(limit, offset int) *Query {
	q.limit = limit
	q.offset = offset
	return q
}

func (q *Query) Conditions() []Condition { return q.conds }

// Resolve maps a public sort key to its column. An empty key yields fallback.
func Resolve(allowed map[string]string, key, fallback string) (string, error) {
	if key == "" {
		return fallback, nil
	}
	col, ok := allowed[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOrder, key)
	}
	return col, nil
}

// WhereClause renders only the AND-chained predicate, without the WHERE keyword.
func (q *Query) WhereClause() (string, []any) {
	if len(q.conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(q.conds))
	args := make([]any, 0, len(q.conds))
	for _, c := range q.conds {
		sql, arg := renderCondition(c)
		parts = append(parts, sql)
		args = append(args, arg)
	}
	return strings.Join(parts, " AND "), args
}

// Build renders the full tail: WHERE, GROUP BY, ORDER BY, LIMIT, OFFSET.
func (q *Query) Build() (string, []any) {
	sql, args := q.BuildCount()
	var b strings.Builder
	b.WriteString(sql)
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
		if q.asc {
			b.WriteString(" ASC")
		} else {
			b.WriteString(" DESC")
		}
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.limit)
		if q.offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, q.offset)
		}
	}
	return b.String(), args
}

// BuildCount renders WHERE and GROUP BY only, for total counts.
func (q *Query) BuildCount() (string, []any) {
	var b strings.Builder
	where, args := q.WhereClause()
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groupBy, ", "))
	}
	return b.String(), args
}

// Scope applies the query to a gorm chain.
func (q *Query) Scope(db *gorm.DB) *gorm.DB {
	db = q.CountScope(db)
	if q.orderBy != "" {
		dir := " DESC"
		if q.asc {
			dir = " ASC"
		}
		db = db.Order(q.orderBy + dir)
	}
	if q.limit > 0 {
		db = db.Limit(q.limit)
		if q.offset > 0 {
			db = db.Offset(q.offset)
		}
	}
	return db
}

func (q *Query) CountScope(db *gorm.DB) *gorm.DB {
	if where, args := q.WhereClause(); where != "" {
		db = db.Where(where, args...)
	}
	for _, g := range q.groupBy {
		db = db.Group(g)
	}
	return db
}

func renderCondition(c Condition) (string, any) {
	switch c.Op {
	case Contains, Prefix, Suffix:
		s := escapeLike(fmt.Sprint(c.Value))
		switch c.Op {
		case Contains:
			s = "%" + s + "%"
		case Prefix:
			s = s + "%"
		case Suffix:
			s = "%" + s
		}
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(?) ESCAPE '\\'", c.Column), s
	case Like:
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", c.Column), c.Value
	case Gte, Lte:
		return fmt.Sprintf("%s %s ?", c.Column, c.Op), c.Value
	default:
		return c.Column + " = ?", c.Value
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func effectiveValue(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		return rv.Elem().Interface(), true
	}
	if rv.IsZero() {
		return nil, false
	}
	return value, true
}
