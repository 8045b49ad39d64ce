package workunit

import (
	"golang.org/x/text/unicode/norm"
)

// Validate reports whether a record may be written to history.
//
// The project must be known and the download time set. A finished unit also
// needs a completion time; any other result must be a terminating error.
func Validate(r Record) bool {
	if r.ProjectIsUnknown() || r.DownloadTime.IsZero() {
		return false
	}
	if r.Result == ResultFinished {
		return !r.CompletionTime.IsZero()
	}
	return r.Result.IsTerminating()
}

// Normalize returns a copy of r ready for storage: text columns in NFC form
// and timestamps in UTC.
func Normalize(r Record) Record {
	r.ClientName = norm.NFC.String(r.ClientName)
	r.ClientPath = norm.NFC.String(r.ClientPath)
	r.Username = norm.NFC.String(r.Username)
	r.Protein.WorkUnitName = norm.NFC.String(r.Protein.WorkUnitName)
	r.DownloadTime = r.DownloadTime.UTC()
	r.CompletionTime = r.CompletionTime.UTC()
	return r
}
