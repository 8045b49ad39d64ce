// Package testutil provides fixtures shared by the history store's package
// tests: deterministic timestamps, work-unit records, a scriptable metadata
// service and raw SQLite helpers for building legacy databases.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hfmnet/wuhistory/internal/protein"
	"github.com/hfmnet/wuhistory/internal/workunit"
)

// FinishedRecord returns a valid finished record for the given project
// coordinates, downloaded at download and completed one hour later.
func FinishedRecord(projectID, run, clone, gen int, download time.Time) workunit.Record {
	return workunit.Record{
		ProjectID:       projectID,
		ProjectRun:      run,
		ProjectClone:    clone,
		ProjectGen:      gen,
		ClientName:      "alice",
		ClientPath:      "192.168.1.10:36330",
		Username:        "alice_folds",
		Team:            32,
		CoreVersion:     0.0,
		FramesCompleted: 100,
		FrameTime:       36 * time.Second,
		Result:          workunit.ResultFinished,
		DownloadTime:    download,
		CompletionTime:  download.Add(time.Hour),
	}
}

// FailedRecord returns a valid record that ended with a terminating error.
func FailedRecord(projectID, run, clone, gen int, download time.Time) workunit.Record {
	r := FinishedRecord(projectID, run, clone, gen, download)
	r.Result = workunit.ResultBadWorkUnit
	r.FramesCompleted = 3
	r.CompletionTime = time.Time{}
	return r
}

// Protein returns metadata for a project with round numbers that make
// production values easy to check by hand.
func Protein(projectID int) workunit.Protein {
	return workunit.Protein{
		WorkUnitName:  fmt.Sprintf("p%d", projectID),
		KFactor:       0.75,
		Core:          "0x22",
		Frames:        100,
		Atoms:         5000,
		Credit:        100,
		PreferredDays: 3,
		MaximumDays:   5,
	}
}

// FakeProteinService is a scriptable protein.Service.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeProteinService struct {
	mu       sync.Mutex
	projects map[int]workunit.Protein
	calls    map[int]int
	// Err, when set, is returned for every lookup.
	Err error
	// OnGet, when set, runs before each lookup with the 1-based call number.
	OnGet func(call int)
}

// NewFakeProteinService returns a service that knows the given projects,
// each with Protein(id) metadata.
func NewFakeProteinService(projectIDs ...int) *FakeProteinService {
	f := &FakeProteinService{
		projects: make(map[int]workunit.Protein),
		calls:    make(map[int]int),
	}
	for _, id := range projectIDs {
		f.projects[id] = Protein(id)
	}
	return f
}

// Set replaces the metadata for a project.
func (f *FakeProteinService) Set(projectID int, p workunit.Protein) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[projectID] = p
}

// Get implements protein.Service.
func (f *FakeProteinService) Get(ctx context.Context, projectID int) (workunit.Protein, error) {
	f.mu.Lock()
	f.calls[projectID]++
	total := 0
	for _, n := range f.calls {
		total += n
	}
	hook, err := f.OnGet, f.Err
	p, ok := f.projects[projectID]
	f.mu.Unlock()

	if hook != nil {
		hook(total)
	}
	if err != nil {
		return workunit.Protein{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return workunit.Protein{}, ctxErr
	}
	if !ok {
		return workunit.Protein{}, fmt.Errorf("project %d: %w", projectID, protein.ErrNotFound)
	}
	return p, nil
}

// Calls returns how many times projectID was looked up.
func (f *FakeProteinService) Calls(projectID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[projectID]
}

// TotalCalls returns the number of lookups across all projects.
func (f *FakeProteinService) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
