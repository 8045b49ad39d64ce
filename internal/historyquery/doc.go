// Package historyquery describes filters and ordering over the work-unit
// history table without hand-written SQL.
//
// A Query is an ordered list of parameters, each a (Column, Operator, Value)
// triple, combined with AND in the order they were added, plus an optional
// sort. Queries are request descriptions: callers build one, hand it to the
// store, and do not mutate it afterwards.
//
//	q := historyquery.New("alice finished since March").
//		Where(historyquery.ColumnClientName, historyquery.Equal, "alice").
//		Where(historyquery.ColumnResult, historyquery.Equal, workunit.ResultFinished).
//		Where(historyquery.ColumnCompletionDateTime, historyquery.GreaterThan, since).
//		OrderBy(historyquery.ColumnCompletionDateTime, historyquery.Descending)
//
// Columns form a closed set matching the history projection, including the
// computed SlotType, PPD and CalcCredit columns. Values are never rendered
// into SQL text; package historysql binds them as parameters.
package historyquery
