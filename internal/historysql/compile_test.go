package historysql

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfmnet/wuhistory/internal/historyquery"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

func dump(r Rendered) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "where: %s\n", r.Where)
	fmt.Fprintf(&b, "order: %s\n", r.OrderBy)
	for i, a := range r.Args {
		fmt.Fprintf(&b, "arg[%d]: %T %v\n", i, a, a)
	}
	return []byte(b.String())
}

func TestCompile_Golden(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("EST", -5*3600))

	tests := map[string]*historyquery.Query{
		"empty": historyquery.New("all rows"),
		"natural_key": historyquery.New("existing").
			Where(historyquery.ColumnProjectID, historyquery.Equal, 11432).
			Where(historyquery.ColumnProjectRun, historyquery.Equal, 1).
			Where(historyquery.ColumnProjectClone, historyquery.Equal, 2).
			Where(historyquery.ColumnProjectGen, historyquery.Equal, 3).
			Where(historyquery.ColumnDownloadDateTime, historyquery.Equal, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		"count_completed": historyquery.New("").
			Where(historyquery.ColumnClientName, historyquery.Equal, "alice").
			Where(historyquery.ColumnResult, historyquery.Equal, workunit.ResultFinished).
			Where(historyquery.ColumnCompletionDateTime, historyquery.GreaterThan, since),
		"sorted_computed": historyquery.New("").
			Where(historyquery.ColumnSlotType, historyquery.Equal, workunit.SlotGPU).
			Where(historyquery.ColumnPPD, historyquery.GreaterThanOrEqual, 1000.5).
			Where(historyquery.ColumnFrameTime, historyquery.LessThanOrEqual, 90*time.Second).
			Where(historyquery.ColumnWorkUnitName, historyquery.Like, "p18%").
			OrderBy(historyquery.ColumnPPD, historyquery.Descending),
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	c := NewCompiler()
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := c.Compile(q)
			require.NoError(t, err)
			g.Assert(t, name, dump(r))
		})
	}
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	q := historyquery.New("").
		Where(historyquery.ColumnClientName, historyquery.Equal, "x'; DROP TABLE WuHistory; --")

	r, err := NewCompiler().Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, r.Where, "DROP")
	assert.Equal(t, "WHERE [InstanceName] = ?", r.Where)
	assert.Equal(t, []any{"x'; DROP TABLE WuHistory; --"}, r.Args)
}

func TestCompile_Idempotent(t *testing.T) {
	q := historyquery.New("").
		Where(historyquery.ColumnProjectID, historyquery.Equal, 7).
		OrderBy(historyquery.ColumnDownloadDateTime, historyquery.Ascending)
	c := NewCompiler()

	first, err := c.Compile(q)
	require.NoError(t, err)
	second, err := c.Compile(q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, q.Parameters, 1)
}

func TestCompile_NilQuery(t *testing.T) {
	r, err := NewCompiler().Compile(nil)
	require.NoError(t, err)
	assert.Empty(t, r.Where)
	assert.Empty(t, r.Args)
	assert.Equal(t, "ORDER BY [ID] ASC", r.OrderBy)
}

func TestCompile_InvalidQuery(t *testing.T) {
	_, err := NewCompiler().Compile(historyquery.New("").Where("Bogus", historyquery.Equal, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, historyquery.ErrInvalidQuery)
}

func TestCompile_ZeroValueCompiler(t *testing.T) {
	var c Compiler
	r, err := c.Compile(historyquery.New(""))
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY [ID] ASC", r.OrderBy)
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 7, 30, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2024-03-01 12:30:00+00:00", FormatTime(ts))
	assert.Equal(t, "0001-01-01 00:00:00+00:00", FormatTime(time.Time{}))
}
