// Package schema holds the SQL descriptors of the two history database
// tables. Tables are plain data: a name, a CREATE statement and, for the
// history table, the SELECT projection every read goes through.
package schema

import (
	"fmt"
	"strings"
)

// Names of the SQL functions the store registers on every connection.
const (
	FuncSlotType   = "ToSlotType"
	FuncProduction = "GetProduction"
)

// Production options accepted as the last GetProduction argument.
const (
	ProductionPPD    = 0
	ProductionCredit = 1
)

// Table describes one table of the history database.
type Table struct {
	Name   string
	Create string
	// Select is the read projection. For History it contains two bind
	// parameters, both the bonus mode, ahead of any caller arguments.
	Select string
}

// Column is a column definition with an explicit non-null default.
type Column struct {
	Name    string
	Type    string
	Default string
}

// Definition renders the column for CREATE TABLE and ALTER TABLE ADD COLUMN.
func (c Column) Definition() string {
	return fmt.Sprintf("[%s] %s DEFAULT %s NOT NULL", c.Name, c.Type, c.Default)
}

// MetadataColumns are the project metadata columns added in schema 0.9.2.
// Defaults are the "unknown" sentinels.
var MetadataColumns = []Column{
	{Name: "WorkUnitName", Type: "VARCHAR(30)", Default: "''"},
	{Name: "KFactor", Type: "FLOAT", Default: "0.0"},
	{Name: "Core", Type: "VARCHAR(20)", Default: "''"},
	{Name: "Frames", Type: "INT", Default: "0"},
	{Name: "Atoms", Type: "INT", Default: "0"},
	{Name: "Credit", Type: "FLOAT", Default: "0.0"},
	{Name: "PreferredDays", Type: "FLOAT", Default: "0.0"},
	{Name: "MaximumDays", Type: "FLOAT", Default: "0.0"},
}

// baseColumns are the columns present since the first schema.
const baseColumns = `[ID] INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	[ProjectID] INT NOT NULL,
	[ProjectRun] INT NOT NULL,
	[ProjectClone] INT NOT NULL,
	[ProjectGen] INT NOT NULL,
	[InstanceName] VARCHAR(60) NOT NULL,
	[InstancePath] VARCHAR(260) NOT NULL,
	[Username] VARCHAR(60) NOT NULL,
	[Team] INT NOT NULL,
	[CoreVersion] FLOAT NOT NULL,
	[FramesCompleted] INT NOT NULL,
	[FrameTime] INT NOT NULL,
	[Result] INT NOT NULL,
	[DownloadDateTime] DATETIME NOT NULL,
	[CompletionDateTime] DATETIME NOT NULL`

// NaturalKeyIndexName names the index NaturalKeyIndex creates.
const NaturalKeyIndexName = "IX_WuHistory_NaturalKey"

// NaturalKeyIndex enforces one row per natural key.
const NaturalKeyIndex = `CREATE UNIQUE INDEX IF NOT EXISTS [` + NaturalKeyIndexName + `]
	ON [WuHistory] ([ProjectID], [ProjectRun], [ProjectClone], [ProjectGen], [DownloadDateTime])`

// LegacyHistoryCreate is the history table as created before schema 0.9.2,
// without metadata columns.
const LegacyHistoryCreate = "CREATE TABLE [WuHistory] (\n\t" + baseColumns + "\n)"

// History is the work-unit history table.
var History = Table{
	Name:   "WuHistory",
	Create: historyCreate(),
	Select: historySelect(),
}

// Version is the append-only schema version log.
var Version = Table{
	Name: "DbVersion",
	Create: `CREATE TABLE [DbVersion] (
	[ID] INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	[Version] VARCHAR(20) NOT NULL
)`,
}

func historyCreate() string {
	defs := make([]string, len(MetadataColumns))
	for i, c := range MetadataColumns {
		defs[i] = c.Definition()
	}
	return "CREATE TABLE [WuHistory] (\n\t" + baseColumns + ",\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

func historySelect() string {
	production := func(option int) string {
		return fmt.Sprintf("CAST(%s([FrameTime], [Frames], [Credit], [KFactor], [PreferredDays], [MaximumDays], "+
			"[DownloadDateTime], [CompletionDateTime], ?, %d) AS FLOAT)", FuncProduction, option)
	}
	return "SELECT * FROM (SELECT " + strings.Join(ProjectedColumns, ", ") + ", " +
		FuncSlotType + "([Core]) AS [SlotType], " +
		production(ProductionPPD) + " AS [PPD], " +
		production(ProductionCredit) + " AS [CalcCredit] " +
		"FROM [WuHistory])"
}

// ProjectedColumns are the stored columns of History.Select, in scan order.
var ProjectedColumns = []string{
	"[ID]",
	"[ProjectID]",
	"[ProjectRun]",
	"[ProjectClone]",
	"[ProjectGen]",
	"[InstanceName]",
	"[InstancePath]",
	"[Username]",
	"[Team]",
	"[CoreVersion]",
	"[FramesCompleted]",
	"[FrameTime]",
	"[Result]",
	"[DownloadDateTime]",
	"[CompletionDateTime]",
	"[WorkUnitName]",
	"[KFactor]",
	"[Core]",
	"[Frames]",
	"[Atoms]",
	"[Credit]",
	"[PreferredDays]",
	"[MaximumDays]",
}
