// Package historysql renders historyquery.Query values into parameterized
// SQLite fragments for the history projection.
package historysql

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hfmnet/wuhistory/internal/historyquery"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// TimestampLayout is the text form of every DATETIME value the store writes
// and binds. It is the driver's canonical layout, so values it writes and
// values compared here collate identically.
var TimestampLayout = sqlite3.SQLiteTimestampFormats[0]

// FormatTime renders t in UTC using TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Rendered is the SQL produced for one query.
//
// Where is empty when the query has no parameters; otherwise it starts with
// "WHERE ". OrderBy always starts with "ORDER BY ".
type Rendered struct {
	Where   string
	OrderBy string
	Args    []any
}

// Compiler renders queries. The zero value orders unsorted queries by ID.
type Compiler struct {
	// DefaultOrder is used when the query carries no sort.
	DefaultOrder historyquery.Column
}

// NewCompiler returns a Compiler that orders unsorted queries by ascending ID,
// which keeps page boundaries stable.
func NewCompiler() *Compiler {
	return &Compiler{DefaultOrder: historyquery.ColumnID}
}

// Compile validates q and renders it. Values are never interpolated into the
// SQL text. Compile does not modify q; the same query always renders the same
// text and arguments.
func (c *Compiler) Compile(q *historyquery.Query) (Rendered, error) {
	if err := q.Validate(); err != nil {
		return Rendered{}, err
	}

	var r Rendered
	if q != nil && len(q.Parameters) > 0 {
		clauses := make([]string, len(q.Parameters))
		r.Args = make([]any, len(q.Parameters))
		for i, p := range q.Parameters {
			clauses[i] = fmt.Sprintf("%s %s ?", quote(p.Column), p.Operator.SQL())
			r.Args[i] = bindValue(p.Value)
		}
		r.Where = "WHERE " + strings.Join(clauses, " AND ")
	}

	r.OrderBy = "ORDER BY " + c.orderKey(q)
	return r, nil
}

// orderKey returns the ORDER BY body. Explicit sorts get ID as a tiebreaker so
// rows with equal sort keys keep a deterministic order across pages.
func (c *Compiler) orderKey(q *historyquery.Query) string {
	def := c.DefaultOrder
	if def == "" {
		def = historyquery.ColumnID
	}
	if q == nil || q.Sort == nil {
		return quote(def) + " ASC"
	}
	dir := "ASC"
	if q.Sort.Direction == historyquery.Descending {
		dir = "DESC"
	}
	key := quote(q.Sort.Column) + " " + dir
	if q.Sort.Column != historyquery.ColumnID {
		key += ", " + quote(historyquery.ColumnID) + " " + dir
	}
	return key
}

func quote(c historyquery.Column) string {
	return "[" + string(c) + "]"
}

// bindValue converts a query value to the representation stored in the
// column it is compared against.
func bindValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return FormatTime(val)
	case time.Duration:
		return int64(val / time.Second)
	case workunit.Result:
		return int64(val)
	case workunit.SlotType:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}
