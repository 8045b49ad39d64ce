// Package maintenance implements the batch jobs that repair and enrich the
// work-unit history table.
//
// Jobs never begin, commit or roll back a transaction. They run against the
// DBTX the caller hands them (normally a *sql.Tx opened by the store for a
// migration step or a metadata refresh) so all of their writes land or vanish
// together with the caller's transaction.
//
// # Jobs
//
//   - DuplicateRemover: keeps the lowest ID of each natural-key group and
//     deletes the rest. Idempotent, not cancellable.
//   - MetadataBackfill: writes project metadata from a protein.Service onto
//     history rows. Cancellable between records; a cancelled run returns
//     ErrCanceled and the caller must roll back.
//
// Both report progress through an optional ProgressFunc and tag their log
// lines with a per-run ID.
package maintenance
