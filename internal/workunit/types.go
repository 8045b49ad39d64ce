package workunit

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Result is the final outcome of a work unit.
// Values are persisted as integers; do not renumber.
type Result int

const (
	ResultUnknown         Result = 0
	ResultFinished        Result = 1
	ResultEarlyUnitEnd    Result = 2
	ResultUnstableMachine Result = 3
	ResultInterrupted     Result = 4
	ResultBadWorkUnit     Result = 5
	ResultCoreOutdated    Result = 6
	ResultClientCoreError Result = 7
)

var resultNames = map[Result]string{
	ResultUnknown:         "UNKNOWN",
	ResultFinished:        "FINISHED_UNIT",
	ResultEarlyUnitEnd:    "EARLY_UNIT_END",
	ResultUnstableMachine: "UNSTABLE_MACHINE",
	ResultInterrupted:     "INTERRUPTED",
	ResultBadWorkUnit:     "BAD_WORK_UNIT",
	ResultCoreOutdated:    "CORE_OUTDATED",
	ResultClientCoreError: "CLIENT_CORE_ERROR",
}

// String returns the client log spelling of the result.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// IsTerminating reports whether the result ends the work unit with an error
// that will not be retried by the client.
func (r Result) IsTerminating() bool {
	switch r {
	case ResultEarlyUnitEnd, ResultUnstableMachine, ResultBadWorkUnit, ResultClientCoreError:
		return true
	default:
		return false
	}
}

// ParseResult accepts either the client log spelling ("FINISHED_UNIT") or the
// numeric code ("1"). Matching is case-insensitive.
func ParseResult(s string) (Result, error) {
	s = strings.TrimSpace(s)
	for r, name := range resultNames {
		if strings.EqualFold(name, s) {
			return r, nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
		if _, ok := resultNames[Result(n)]; ok {
			return Result(n), nil
		}
	}
	return ResultUnknown, fmt.Errorf("unknown work unit result %q", s)
}

// UnmarshalYAML accepts a result as either its name or its numeric code.
func (r *Result) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseResult(value.Value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// BonusMode selects which production formula variant a query evaluates.
// It is a per-request argument and is never persisted.
type BonusMode int

const (
	BonusNone BonusMode = iota
	BonusDownloadTime
	BonusFrameTime
)

// String returns the flag spelling of the mode.
func (m BonusMode) String() string {
	switch m {
	case BonusNone:
		return "none"
	case BonusDownloadTime:
		return "download"
	case BonusFrameTime:
		return "frame"
	default:
		return fmt.Sprintf("BonusMode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m BonusMode) Valid() bool {
	return m >= BonusNone && m <= BonusFrameTime
}

// ParseBonusMode parses the flag spelling produced by String.
func ParseBonusMode(s string) (BonusMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return BonusNone, nil
	case "download", "downloadtime":
		return BonusDownloadTime, nil
	case "frame", "frametime":
		return BonusFrameTime, nil
	default:
		return BonusNone, fmt.Errorf("invalid bonus mode %q: must be one of none, download, frame", s)
	}
}

// SlotType is the coarse hardware category a core runs on.
type SlotType string

const (
	SlotUnknown SlotType = "Unknown"
	SlotCPU     SlotType = "CPU"
	SlotGPU     SlotType = "GPU"
)

// Protein is the project metadata snapshot captured with a record.
type Protein struct {
	WorkUnitName  string  `yaml:"work_unit_name" json:"work_unit_name"`
	KFactor       float64 `yaml:"k_factor" json:"k_factor"`
	Core          string  `yaml:"core" json:"core"`
	Frames        int     `yaml:"frames" json:"frames"`
	Atoms         int     `yaml:"atoms" json:"atoms"`
	Credit        float64 `yaml:"credit" json:"credit"`
	PreferredDays float64 `yaml:"preferred_days" json:"preferred_days"`
	MaximumDays   float64 `yaml:"maximum_days" json:"maximum_days"`
}

// IsUnknown reports whether the snapshot still holds the sentinel defaults
// written for rows that predate metadata capture.
func (p Protein) IsUnknown() bool {
	return p.WorkUnitName == ""
}

// Record is one finalized work unit.
type Record struct {
	ID int64 `yaml:"id,omitempty" json:"id"`

	ProjectID    int `yaml:"project_id" json:"project_id"`
	ProjectRun   int `yaml:"run" json:"run"`
	ProjectClone int `yaml:"clone" json:"clone"`
	ProjectGen   int `yaml:"gen" json:"gen"`

	ClientName string `yaml:"client_name" json:"client_name"`
	ClientPath string `yaml:"client_path" json:"client_path"`
	Username   string `yaml:"username" json:"username"`
	Team       int    `yaml:"team" json:"team"`

	CoreVersion     float64       `yaml:"core_version" json:"core_version"`
	FramesCompleted int           `yaml:"frames_completed" json:"frames_completed"`
	FrameTime       time.Duration `yaml:"frame_time" json:"frame_time"`
	Result          Result        `yaml:"result" json:"result"`

	DownloadTime   time.Time `yaml:"download_time" json:"download_time"`
	CompletionTime time.Time `yaml:"completion_time,omitempty" json:"completion_time"`

	Protein Protein `yaml:"protein,omitempty" json:"protein"`
}

// ProjectIsUnknown reports whether all four project coordinates are unset.
func (r Record) ProjectIsUnknown() bool {
	return r.ProjectID == 0 && r.ProjectRun == 0 && r.ProjectClone == 0 && r.ProjectGen == 0
}

// ProjectString formats the project coordinates as "P1234 (R1, C2, G3)".
func (r Record) ProjectString() string {
	return fmt.Sprintf("P%d (R%d, C%d, G%d)", r.ProjectID, r.ProjectRun, r.ProjectClone, r.ProjectGen)
}

// Row is a Record with the values computed per row at query time.
type Row struct {
	Record

	SlotType SlotType `json:"slot_type"`
	// Credit is the bonus-adjusted credit for the query's BonusMode.
	Credit float64 `json:"credit"`
	PPD    float64 `json:"ppd"`
}
