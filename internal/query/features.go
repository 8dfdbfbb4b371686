// Package query translates an HTTP query string into a SQL query
// description.  The pipeline applies filter, sort, field projection and
// pagination in that fixed order; no stage executes anything.  Execution is
// deferred to the repository that owns the table, so a caller may inspect
// the built Query before running it.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Defaults applied by Paginate when the client omits the parameters.
const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Reserved parameter names consumed by the pipeline itself; Filter skips
// them when building predicates.
var reserved = map[string]bool{
	"page":   true,
	"limit":  true,
	"sort":   true,
	"fields": true,
}

// comparison suffixes accepted inside brackets: price[gte]=100.
var operators = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
}

// Query is the accumulated description.  Where fragments are parameterized
// ("price >= ?") with their values in Args, in matching order.
type Query struct {
	Columns []string
	Where   []string
	Args    []any
	OrderBy []string
	Limit   int
	Offset  int
}

// And appends a fixed predicate, e.g. a parent-route pre-filter
// ("tour_id = ?") or an ownership constraint.
func (q *Query) And(cond string, args ...any) *Query {
	q.Where = append(q.Where, cond)
	q.Args = append(q.Args, args...)
	return q
}

// Select renders a complete statement against the given table.  defaults is
// the store's full column list, used when no projection was requested.
// LIMIT/OFFSET placeholders are appended to the returned args.
func (q *Query) Select(table string, defaults []string) (string, []any) {
	cols := q.Columns
	if len(cols) == 0 {
		cols = defaults
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)

	args := make([]any, 0, len(q.Args)+2)
	args = append(args, q.Args...)

	if len(q.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.Where, " AND "))
	}
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.OrderBy, ", "))
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, q.Limit, q.Offset)
	return b.String(), args
}

// Features walks the pipeline stages over a raw parameter mapping.  fields
// maps external parameter names to column names and doubles as the
// allow-list: anything absent from it can be neither filtered, sorted nor
// projected, which keeps client input away from raw SQL and internal
// columns (password hashes, token slots) out of projections.
type Features struct {
	values url.Values
	fields map[string]string
	q      Query
}

// New starts a pipeline over the given parameters.
func New(values url.Values, fields map[string]string) *Features {
	return &Features{values: values, fields: fields, q: Query{Limit: DefaultLimit}}
}

// Filter turns every non-reserved parameter into an equality predicate, or
// a comparison when the key carries a [gte|gt|lte|lt] suffix.  Unknown
// field names are dropped.  Keys are visited in sorted order so the built
// statement is reproducible run to run.
func (f *Features) Filter() *Features {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name, op := splitOperator(key)
		if reserved[name] {
			continue
		}
		col, ok := f.fields[name]
		if !ok {
			continue
		}
		f.q.And(col+" "+op+" ?", f.values.Get(key))
	}
	return f
}

// splitOperator parses "price[gte]" into ("price", ">="); a bare key or an
// unknown suffix means equality.
func splitOperator(key string) (name, op string) {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, "="
	}
	if sqlOp, ok := operators[key[open+1:len(key)-1]]; ok {
		return key[:open], sqlOp
	}
	return key[:open], "="
}

// Sort consumes the comma-separated sort parameter; a leading '-' means
// descending.  When unspecified, results fall back to newest-first so
// pagination stays stable.
func (f *Features) Sort() *Features {
	raw := f.values.Get("sort")
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := " ASC"
		if strings.HasPrefix(part, "-") {
			part = part[1:]
			dir = " DESC"
		}
		if col, ok := f.fields[part]; ok {
			f.q.OrderBy = append(f.q.OrderBy, col+dir)
		}
	}
	if len(f.q.OrderBy) == 0 {
		f.q.OrderBy = []string{"created_at DESC"}
	}
	return f
}

// LimitFields consumes the comma-separated fields parameter as a projection
// allow-list intersected with the known field map.
func (f *Features) LimitFields() *Features {
	raw := f.values.Get("fields")
	if raw == "" {
		return f
	}
	for _, part := range strings.Split(raw, ",") {
		if col, ok := f.fields[strings.TrimSpace(part)]; ok {
			f.q.Columns = append(f.q.Columns, col)
		}
	}
	return f
}

// Paginate maps page/limit to an offset/limit pair: skip = (page-1)*limit.
func (f *Features) Paginate() *Features {
	page := intParam(f.values, "page", DefaultPage)
	if page < 1 {
		page = DefaultPage
	}
	limit := intParam(f.values, "limit", DefaultLimit)
	if limit < 1 {
		limit = DefaultLimit
	}
	f.q.Limit = limit
	f.q.Offset = (page - 1) * limit
	return f
}

// Query returns the accumulated description.
func (f *Features) Query() *Query {
	return &f.q
}

func intParam(values url.Values, key string, def int) int {
	v := values.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
