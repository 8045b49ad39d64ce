// Package store provides the SQLite-backed work-unit history database.
//
// A Store owns one database file (WuHistory.db3 by default) holding two
// tables:
//   - WuHistory: one row per finalized work unit, unique on the natural key
//     (ProjectID, ProjectRun, ProjectClone, ProjectGen, DownloadDateTime)
//   - DbVersion: an append-only log of schema versions; the row with the
//     highest ID is current
//
// # Lifecycle
//
// Open creates the file and both tables when missing, stamps the current
// ApplicationVersion and runs every registered migration newer than the
// stamped version, one transaction per migration. A store that could not be
// reached reports Connected() == false and every operation returns
// ErrNotConnected. A failed migration is returned as *UpgradeError.
//
// # Computed columns
//
// Reads go through schema.History.Select, which evaluates two SQL functions
// registered on every connection:
//   - ToSlotType(Core) classifies the core as CPU, GPU or Unknown
//   - GetProduction(...) returns PPD or bonus-adjusted credit
//
// The bonus mode is a bound parameter of each read, so concurrent callers
// using different modes never observe each other's setting.
//
// # Database Configuration
//
//   - WAL mode: readers proceed while a backfill transaction is open
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: writers wait for locks up to 5 seconds
//   - BEGIN IMMEDIATE: write transactions take the write lock up front
package store
