package historyquery

import (
	"fmt"
	"strings"
)

// Column names a field of the history projection.
type Column string

const (
	ColumnID                 Column = "ID"
	ColumnProjectID          Column = "ProjectID"
	ColumnProjectRun         Column = "ProjectRun"
	ColumnProjectClone       Column = "ProjectClone"
	ColumnProjectGen         Column = "ProjectGen"
	ColumnClientName         Column = "InstanceName"
	ColumnClientPath         Column = "InstancePath"
	ColumnUsername           Column = "Username"
	ColumnTeam               Column = "Team"
	ColumnCoreVersion        Column = "CoreVersion"
	ColumnFramesCompleted    Column = "FramesCompleted"
	ColumnFrameTime          Column = "FrameTime"
	ColumnResult             Column = "Result"
	ColumnDownloadDateTime   Column = "DownloadDateTime"
	ColumnCompletionDateTime Column = "CompletionDateTime"
	ColumnWorkUnitName       Column = "WorkUnitName"
	ColumnKFactor            Column = "KFactor"
	ColumnCore               Column = "Core"
	ColumnFrames             Column = "Frames"
	ColumnAtoms              Column = "Atoms"
	ColumnBaseCredit         Column = "Credit"
	ColumnPreferredDays      Column = "PreferredDays"
	ColumnMaximumDays        Column = "MaximumDays"

	// Computed per row at query time.
	ColumnSlotType   Column = "SlotType"
	ColumnPPD        Column = "PPD"
	ColumnCalcCredit Column = "CalcCredit"
)

// Columns lists every queryable column in projection order.
var Columns = []Column{
	ColumnID,
	ColumnProjectID,
	ColumnProjectRun,
	ColumnProjectClone,
	ColumnProjectGen,
	ColumnClientName,
	ColumnClientPath,
	ColumnUsername,
	ColumnTeam,
	ColumnCoreVersion,
	ColumnFramesCompleted,
	ColumnFrameTime,
	ColumnResult,
	ColumnDownloadDateTime,
	ColumnCompletionDateTime,
	ColumnWorkUnitName,
	ColumnKFactor,
	ColumnCore,
	ColumnFrames,
	ColumnAtoms,
	ColumnBaseCredit,
	ColumnPreferredDays,
	ColumnMaximumDays,
	ColumnSlotType,
	ColumnPPD,
	ColumnCalcCredit,
}

var columnSet = func() map[Column]bool {
	m := make(map[Column]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// Valid reports whether c is one of Columns.
func (c Column) Valid() bool {
	return columnSet[c]
}

// ParseColumn resolves a column name case-insensitively.
// "Name" and "Path" are accepted as aliases for the client columns.
func ParseColumn(s string) (Column, error) {
	switch strings.ToLower(s) {
	case "name", "client":
		return ColumnClientName, nil
	case "path":
		return ColumnClientPath, nil
	}
	for _, c := range Columns {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown column %q", s)
}

// Operator is a comparison between a column and a value.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	Like
)

var operatorSQL = map[Operator]string{
	Equal:              "=",
	NotEqual:           "<>",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	Like:               "LIKE",
}

// SQL returns the SQL spelling of the operator, or "" for an invalid operator.
func (o Operator) SQL() string {
	return operatorSQL[o]
}

// String returns the SQL spelling, for logs.
func (o Operator) String() string {
	if s, ok := operatorSQL[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Direction is the sort direction of an OrderBy.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Parameter is one (column, operator, value) predicate.
type Parameter struct {
	Column   Column
	Operator Operator
	Value    any
}

// Sort is an explicit ordering.
type Sort struct {
	Column    Column
	Direction Direction
}

// Query is an ordered list of AND-ed parameters and an optional sort.
type Query struct {
	// Name describes the query in log output.
	Name       string
	Parameters []Parameter
	Sort       *Sort
}

// New creates an empty query with a descriptive name.
func New(name string) *Query {
	return &Query{Name: name}
}

// Where appends a predicate and returns q for chaining.
func (q *Query) Where(column Column, op Operator, value any) *Query {
	q.Parameters = append(q.Parameters, Parameter{Column: column, Operator: op, Value: value})
	return q
}

// OrderBy sets the sort and returns q for chaining.
func (q *Query) OrderBy(column Column, dir Direction) *Query {
	q.Sort = &Sort{Column: column, Direction: dir}
	return q
}

// Clone returns a deep copy so a caller can extend a shared base query.
func (q *Query) Clone() *Query {
	if q == nil {
		return New("")
	}
	c := &Query{Name: q.Name}
	c.Parameters = append([]Parameter(nil), q.Parameters...)
	if q.Sort != nil {
		s := *q.Sort
		c.Sort = &s
	}
	return c
}

// String returns the name, or a summary of the parameters when unnamed.
func (q *Query) String() string {
	if q == nil {
		return "<all>"
	}
	if q.Name != "" {
		return q.Name
	}
	if len(q.Parameters) == 0 {
		return "<all>"
	}
	parts := make([]string, len(q.Parameters))
	for i, p := range q.Parameters {
		parts[i] = fmt.Sprintf("%s %s %v", p.Column, p.Operator, p.Value)
	}
	return strings.Join(parts, " AND ")
}
