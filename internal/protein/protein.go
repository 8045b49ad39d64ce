// Package protein provides project metadata ("protein" data) lookups used to
// enrich work-unit history rows.
//
// The history store depends only on the Service interface. Two adapters are
// provided: Catalog, an in-memory table usually loaded from a YAML or JSON
// file, and Client, which downloads a project summary over HTTP.
package protein

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

// ErrNotFound is returned when the service has no metadata for a project.
var ErrNotFound = errors.New("project not found")

// Service looks up project metadata by project ID.
// Implementations return ErrNotFound (possibly wrapped) for unknown projects.
type Service interface {
	Get(ctx context.Context, projectID int) (workunit.Protein, error)
}

// Entry is one project in a catalog file or summary document.
type Entry struct {
	ProjectID     int     `yaml:"project_id" json:"project_id"`
	WorkUnitName  string  `yaml:"work_unit_name" json:"work_unit_name"`
	Core          string  `yaml:"core" json:"core"`
	KFactor       float64 `yaml:"k_factor" json:"k_factor"`
	Frames        int     `yaml:"frames" json:"frames"`
	Atoms         int     `yaml:"atoms" json:"atoms"`
	Credit        float64 `yaml:"credit" json:"credit"`
	PreferredDays float64 `yaml:"preferred_days" json:"preferred_days"`
	MaximumDays   float64 `yaml:"maximum_days" json:"maximum_days"`
}

// Protein converts the entry to the snapshot stored with history rows.
// A missing work unit name defaults to "p<project>".
func (e Entry) Protein() workunit.Protein {
	name := e.WorkUnitName
	if name == "" {
		name = fmt.Sprintf("p%d", e.ProjectID)
	}
	return workunit.Protein{
		WorkUnitName:  name,
		KFactor:       e.KFactor,
		Core:          e.Core,
		Frames:        e.Frames,
		Atoms:         e.Atoms,
		Credit:        e.Credit,
		PreferredDays: e.PreferredDays,
		MaximumDays:   e.MaximumDays,
	}
}

// Catalog is an immutable in-memory Service.
type Catalog struct {
	projects map[int]workunit.Protein
}

// NewCatalog builds a catalog from entries. Later entries win on duplicate
// project IDs; entries without a positive project ID are ignored.
func NewCatalog(entries []Entry) *Catalog {
	c := &Catalog{projects: make(map[int]workunit.Protein, len(entries))}
	for _, e := range entries {
		if e.ProjectID <= 0 {
			continue
		}
		c.projects[e.ProjectID] = e.Protein()
	}
	return c
}

// LoadCatalog reads a YAML (or JSON) list of entries from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalog(entries), nil
}

// Get implements Service.
func (c *Catalog) Get(ctx context.Context, projectID int) (workunit.Protein, error) {
	if err := ctx.Err(); err != nil {
		return workunit.Protein{}, err
	}
	p, ok := c.projects[projectID]
	if !ok {
		return workunit.Protein{}, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}
	return p, nil
}

// Len returns the number of projects in the catalog.
func (c *Catalog) Len() int {
	return len(c.projects)
}

// ProjectIDs returns the catalog's project IDs in ascending order.
func (c *Catalog) ProjectIDs() []int {
	ids := make([]int, 0, len(c.projects))
	for id := range c.projects {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
