package historyquery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

func TestWhere_AppendsInOrder(t *testing.T) {
	q := New("ordered").
		Where(ColumnProjectID, Equal, 11432).
		Where(ColumnResult, NotEqual, workunit.ResultFinished).
		Where(ColumnClientName, Like, "ali%")

	require.Len(t, q.Parameters, 3)
	assert.Equal(t, ColumnProjectID, q.Parameters[0].Column)
	assert.Equal(t, ColumnResult, q.Parameters[1].Column)
	assert.Equal(t, Like, q.Parameters[2].Operator)
	assert.Nil(t, q.Sort)
}

func TestClone_IsIndependent(t *testing.T) {
	base := New("base").Where(ColumnClientName, Equal, "alice").OrderBy(ColumnID, Descending)
	c := base.Clone().Where(ColumnProjectID, Equal, 1)
	c.Sort.Direction = Ascending

	assert.Len(t, base.Parameters, 1)
	assert.Len(t, c.Parameters, 2)
	assert.Equal(t, Descending, base.Sort.Direction)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   *Query
		wantErr bool
	}{
		{"nil query", nil, false},
		{"empty query", New(""), false},
		{"all value kinds", New("").
			Where(ColumnProjectID, Equal, 1).
			Where(ColumnKFactor, GreaterThan, 0.75).
			Where(ColumnDownloadDateTime, GreaterThanOrEqual, time.Now()).
			Where(ColumnFrameTime, LessThan, time.Minute).
			Where(ColumnResult, Equal, workunit.ResultFinished).
			Where(ColumnSlotType, Equal, workunit.SlotGPU).
			Where(ColumnUsername, Like, "a%"), false},
		{"unknown column", New("").Where(Column("DROP TABLE"), Equal, 1), true},
		{"unknown operator", New("").Where(ColumnID, Operator(99), 1), true},
		{"unsupported value", New("").Where(ColumnID, Equal, []int{1}), true},
		{"nil value", New("").Where(ColumnID, Equal, nil), true},
		{"like needs string", New("").Where(ColumnID, Like, 1), true},
		{"unknown sort column", New("").OrderBy(Column("x"), Ascending), true},
		{"unknown sort direction", New("").OrderBy(ColumnID, Direction(7)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidQuery))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("ppd")
	require.NoError(t, err)
	assert.Equal(t, ColumnPPD, c)

	c, err = ParseColumn("name")
	require.NoError(t, err)
	assert.Equal(t, ColumnClientName, c)

	_, err = ParseColumn("nope")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "named", New("named").Where(ColumnID, Equal, 1).String())
	assert.Equal(t, "ProjectID = 7 AND InstanceName LIKE a%",
		New("").Where(ColumnProjectID, Equal, 7).Where(ColumnClientName, Like, "a%").String())
	assert.Equal(t, "<all>", New("").String())
}
