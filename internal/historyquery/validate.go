package historyquery

import (
	"errors"
	"fmt"
	"time"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

// ErrInvalidQuery is wrapped by every error Validate returns.
var ErrInvalidQuery = errors.New("invalid history query")

// Validate checks that every column and operator is known and every value is
// a type the store can bind. A nil query is valid and matches all rows.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	for i, p := range q.Parameters {
		if !p.Column.Valid() {
			return fmt.Errorf("%w: parameter %d: unknown column %q", ErrInvalidQuery, i, p.Column)
		}
		if p.Operator.SQL() == "" {
			return fmt.Errorf("%w: parameter %d: unknown operator %d", ErrInvalidQuery, i, int(p.Operator))
		}
		if !bindable(p.Value) {
			return fmt.Errorf("%w: parameter %d: unsupported value type %T", ErrInvalidQuery, i, p.Value)
		}
		if p.Operator == Like {
			if _, ok := p.Value.(string); !ok {
				return fmt.Errorf("%w: parameter %d: LIKE requires a string pattern", ErrInvalidQuery, i)
			}
		}
	}
	if q.Sort != nil {
		if !q.Sort.Column.Valid() {
			return fmt.Errorf("%w: sort: unknown column %q", ErrInvalidQuery, q.Sort.Column)
		}
		if q.Sort.Direction != Ascending && q.Sort.Direction != Descending {
			return fmt.Errorf("%w: sort: unknown direction %d", ErrInvalidQuery, int(q.Sort.Direction))
		}
	}
	return nil
}

func bindable(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint8, uint16, uint32,
		float32, float64,
		time.Time, time.Duration,
		workunit.Result, workunit.SlotType:
		return true
	default:
		return false
	}
}
