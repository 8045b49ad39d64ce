package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfmnet/wuhistory/internal/testutil"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

type backfillFixture struct {
	ids map[string]int64
}

// seedBackfill inserts four rows: two for project 6800, one for 6801 and one
// for 9999, which the fake service does not know.
func seedBackfill(t *testing.T) (*backfillFixture, *testutil.FakeProteinService, *sql.DB) {
	t.Helper()
	db, _ := testutil.OpenRawDB(t)
	testutil.CreateHistoryTable(t, db)
	clock := testutil.NewDeterministicClock()

	f := &backfillFixture{ids: map[string]int64{}}
	f.ids["6800a"] = testutil.InsertLegacyRow(t, db, testutil.FinishedRecord(6800, 0, 0, 1, clock.Next()))
	f.ids["9999"] = testutil.InsertLegacyRow(t, db, testutil.FinishedRecord(9999, 0, 0, 1, clock.Next()))
	f.ids["6801"] = testutil.InsertLegacyRow(t, db, testutil.FinishedRecord(6801, 0, 0, 1, clock.Next()))
	f.ids["6800b"] = testutil.InsertLegacyRow(t, db, testutil.FinishedRecord(6800, 0, 0, 2, clock.Next()))

	return f, testutil.NewFakeProteinService(6800, 6801), db
}

func metadataByID(snaps []testutil.MetadataSnapshot) map[int64]workunit.Protein {
	out := make(map[int64]workunit.Protein, len(snaps))
	for _, s := range snaps {
		out[s.ID] = s.Protein
	}
	return out
}

func TestMetadataBackfill_All(t *testing.T) {
	f, svc, db := seedBackfill(t)
	tx := beginTx(t, db)

	b := &MetadataBackfill{Service: svc, Scope: ScopeAll}
	result, err := b.Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, int64(3), result.Updated)
	assert.Equal(t, 3, result.Lookups)
	assert.Equal(t, []int{9999}, result.Missing)

	// One lookup per distinct project.
	assert.Equal(t, 1, svc.Calls(6800))
	assert.Equal(t, 1, svc.Calls(6801))
	assert.Equal(t, 1, svc.Calls(9999))

	got := metadataByID(testutil.SnapshotMetadata(t, db))
	assert.Equal(t, testutil.Protein(6800), got[f.ids["6800a"]])
	assert.Equal(t, testutil.Protein(6800), got[f.ids["6800b"]])
	assert.Equal(t, testutil.Protein(6801), got[f.ids["6801"]])
	assert.True(t, got[f.ids["9999"]].IsUnknown())
}

func TestMetadataBackfill_Unknown(t *testing.T) {
	f, svc, db := seedBackfill(t)
	tx := beginTx(t, db)

	_, err := tx.ExecContext(context.Background(),
		`UPDATE [WuHistory] SET [WorkUnitName] = 'kept', [Credit] = 1 WHERE [ID] = ?`, f.ids["6801"])
	require.NoError(t, err)

	b := &MetadataBackfill{Service: svc, Scope: ScopeUnknown}
	result, err := b.Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, int64(2), result.Updated)
	assert.Zero(t, svc.Calls(6801))

	got := metadataByID(testutil.SnapshotMetadata(t, db))
	assert.Equal(t, "kept", got[f.ids["6801"]].WorkUnitName)
	assert.Equal(t, testutil.Protein(6800), got[f.ids["6800b"]])
}

func TestMetadataBackfill_Project(t *testing.T) {
	f, svc, db := seedBackfill(t)
	tx := beginTx(t, db)

	b := &MetadataBackfill{Service: svc, Scope: ScopeProject, Arg: 6800}
	result, err := b.Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, int64(2), result.Updated)
	assert.Equal(t, 1, svc.TotalCalls())

	got := metadataByID(testutil.SnapshotMetadata(t, db))
	assert.True(t, got[f.ids["6801"]].IsUnknown())
	assert.Equal(t, testutil.Protein(6800), got[f.ids["6800a"]])
}

func TestMetadataBackfill_ID(t *testing.T) {
	f, svc, db := seedBackfill(t)
	tx := beginTx(t, db)

	b := &MetadataBackfill{Service: svc, Scope: ScopeID, Arg: f.ids["6800b"]}
	result, err := b.Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, int64(1), result.Updated)

	got := metadataByID(testutil.SnapshotMetadata(t, db))
	assert.True(t, got[f.ids["6800a"]].IsUnknown())
	assert.Equal(t, testutil.Protein(6800), got[f.ids["6800b"]])
}

func TestMetadataBackfill_ServiceError(t *testing.T) {
	_, svc, db := seedBackfill(t)
	tx := beginTx(t, db)
	svc.Err = errors.New("summary unavailable")

	_, err := (&MetadataBackfill{Service: svc, Scope: ScopeAll}).Run(context.Background(), tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary unavailable")
	assert.False(t, errors.Is(err, ErrCanceled))
}

func TestMetadataBackfill_NoService(t *testing.T) {
	_, _, db := seedBackfill(t)
	tx := beginTx(t, db)
	_, err := (&MetadataBackfill{}).Run(context.Background(), tx)
	require.Error(t, err)
}

func TestMetadataBackfill_CanceledMidRunRollsBack(t *testing.T) {
	_, svc, db := seedBackfill(t)
	before := testutil.SnapshotMetadata(t, db)
	tx := beginTx(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The first lookup (project 6800) succeeds; cancel while fetching the second.
	svc.OnGet = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	result, err := (&MetadataBackfill{Service: svc, Scope: ScopeAll}).Run(ctx, tx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCanceled))
	assert.Equal(t, int64(2), result.Updated)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, before, testutil.SnapshotMetadata(t, db))
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"all", ScopeAll, false},
		{"", ScopeUnknown, false},
		{"Unknown", ScopeUnknown, false},
		{" project ", ScopeProject, false},
		{"id", ScopeID, false},
		{"everything", ScopeAll, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				round, err := ParseScope(got.String())
				require.NoError(t, err)
				assert.Equal(t, got, round)
			}
		})
	}
}
