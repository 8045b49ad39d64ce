package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfmnet/wuhistory/internal/schema"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

func TestGetProduction_Arguments(t *testing.T) {
	download := "2024-03-01 00:00:00+00:00"
	completed := "2024-03-01 01:00:00+00:00"

	tests := []struct {
		name string
		args []any
		want float64
	}{
		{
			name: "ppd without bonus",
			args: []any{int64(36), int64(100), 100.0, 0.75, 3.0, 5.0, download, completed, int64(workunit.BonusNone), int64(schema.ProductionPPD)},
			want: 2400,
		},
		{
			name: "credit without bonus",
			args: []any{int64(36), int64(100), 100.0, 0.75, 3.0, 5.0, download, completed, int64(workunit.BonusNone), int64(schema.ProductionCredit)},
			want: 100,
		},
		{
			name: "integer credit column",
			args: []any{int64(36), int64(100), int64(100), 0.75, 3.0, 5.0, download, completed, int64(workunit.BonusNone), int64(schema.ProductionPPD)},
			want: 2400,
		},
		{
			name: "unknown metadata",
			args: []any{int64(36), int64(0), 0.0, 0.0, 0.0, 0.0, download, completed, int64(workunit.BonusFrameTime), int64(schema.ProductionPPD)},
			want: 0,
		},
		{
			name: "unparseable completion",
			args: []any{int64(36), int64(100), 100.0, 0.75, 3.0, 5.0, download, "soon", int64(workunit.BonusNone), int64(schema.ProductionPPD)},
			want: 0,
		},
		{
			name: "null completion",
			args: []any{int64(36), int64(100), 100.0, 0.75, 3.0, 5.0, download, nil, int64(workunit.BonusNone), int64(schema.ProductionPPD)},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.args
			got := getProduction(a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8], a[9])
			assert.InDelta(t, tt.want, got, 0.0005)
		})
	}
}

func TestToSlotType(t *testing.T) {
	assert.Equal(t, "GPU", toSlotType("0x22"))
	assert.Equal(t, "CPU", toSlotType([]byte("0xa8")))
	assert.Equal(t, "Unknown", toSlotType(nil))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-03-01 12:30:00+00:00",
		"2024-03-01 14:30:00+02:00",
		"2024-03-01T12:30:00Z",
		"2024-03-01 12:30:00",
		"2024-03-01 12:30:00.000",
	} {
		got, err := parseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}

	_, err := parseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestSQLFunctions_Registered(t *testing.T) {
	s := createTestStore(t)
	var slot string
	var ppd float64
	err := s.DB().QueryRowContext(context.Background(),
		`SELECT ToSlotType('OPENMM_22'), GetProduction(36, 100, 100.0, 0, 0, 0, ?, ?, 0, 0)`,
		"2024-03-01 00:00:00+00:00", "2024-03-01 01:00:00+00:00",
	).Scan(&slot, &ppd)
	require.NoError(t, err)
	assert.Equal(t, "GPU", slot)
	assert.InDelta(t, 2400, ppd, 0.0005)
}
