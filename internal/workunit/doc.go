// Package workunit defines the work-unit history record and the small value
// types that travel with it.
//
// A Record is one finalized work unit as persisted in the history database.
// Its natural key is (ProjectID, ProjectRun, ProjectClone, ProjectGen,
// DownloadTime); the surrogate ID is assigned by the store on insert.
//
// A Row is a Record decorated with values computed at query time (slot type,
// bonus credit and points per day). Rows are never written back.
//
// # Unknown metadata
//
// Records created before metadata capture carry sentinel values in their
// Protein snapshot: empty strings and zero numbers. Protein.IsUnknown reports
// that state and the metadata backfill job replaces it.
package workunit
