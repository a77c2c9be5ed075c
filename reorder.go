package main

import "sort"

// targetSeparator splits start columns from end columns on the command line.
const targetSeparator = "..."

// splitTargetTokens sorts command-line column tokens into start and end lists.
// Everything before the first "..." is a start column, everything after it an
// end column. Later "..." tokens are kept in end as literal names.
func splitTargetTokens(tokens []string) (start, end []string) {
	start, end = []string{}, []string{}
	seenSeparator := false
	for _, tok := range tokens {
		switch {
		case tok == targetSeparator && !seenSeparator:
			seenSeparator = true
		case seenSeparator:
			end = append(end, tok)
		default:
			start = append(start, tok)
		}
	}
	return start, end
}

// reorderColumns returns columns in target order: start columns in the order
// given, then every other column in its original order, then end columns.
// Excluded columns are dropped; names that match no column are ignored.
func reorderColumns(spec TargetSpec, columns []Column) []Column {
	exclude := make(map[string]bool, len(spec.Exclude))
	for _, name := range spec.Exclude {
		exclude[name] = true
	}
	startPos := positions(spec.Start)
	endPos := positions(spec.End)

	var startCols, middleCols, endCols []Column
	for _, col := range columns {
		if exclude[col.Name] {
			continue
		}
		if _, ok := endPos[col.Name]; ok {
			endCols = append(endCols, col)
			continue
		}
		if _, ok := startPos[col.Name]; ok {
			startCols = append(startCols, col)
			continue
		}
		middleCols = append(middleCols, col)
	}

	sort.SliceStable(startCols, func(i, j int) bool {
		return startPos[startCols[i].Name] < startPos[startCols[j].Name]
	})
	sort.SliceStable(endCols, func(i, j int) bool {
		return endPos[endCols[i].Name] < endPos[endCols[j].Name]
	})

	result := make([]Column, 0, len(startCols)+len(middleCols)+len(endCols))
	result = append(result, startCols...)
	result = append(result, middleCols...)
	return append(result, endCols...)
}

// positions maps each name to its first index in names.
func positions(names []string) map[string]int {
	pos := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := pos[n]; !ok {
			pos[n] = i
		}
	}
	return pos
}

// unknownTargetNames lists requested start/end names that match no column.
func unknownTargetNames(spec TargetSpec, columns []Column) []string {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c.Name] = true
	}
	var unknown []string
	for _, group := range [][]string{spec.Start, spec.End} {
		for _, n := range group {
			if !known[n] {
				unknown = append(unknown, n)
			}
		}
	}
	return unknown
}
