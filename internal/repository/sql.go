package repository

import (
	"sort"
	"strings"
)

// buildInsert renders an INSERT for the allow-listed fields map.  cols maps
// external (JSON) field names to column names; unknown keys are dropped
// rather than interpolated, so client input never reaches raw SQL.  Keys
// are visited in sorted order for reproducible statements.
func buildInsert(table string, cols map[string]string, fields map[string]any) (string, []any) {
	keys := sortedKnownKeys(cols, fields)
	if len(keys) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(keys))
	marks := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		names = append(names, cols[k])
		marks = append(marks, "?")
		args = append(args, fields[k])
	}
	return "INSERT INTO " + table + " (" + strings.Join(names, ", ") + ") VALUES (" +
		strings.Join(marks, ", ") + ")", args
}

// buildUpdate renders an UPDATE ... WHERE id=? for the allow-listed fields
// map, with the id appended as the final argument.
func buildUpdate(table string, cols map[string]string, fields map[string]any, id uint64) (string, []any) {
	keys := sortedKnownKeys(cols, fields)
	if len(keys) == 0 {
		return "", nil
	}
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		sets = append(sets, cols[k]+" = ?")
		args = append(args, fields[k])
	}
	args = append(args, id)
	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?", args
}

func sortedKnownKeys(cols map[string]string, fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := cols[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// isDuplicate reports whether err is a MySQL unique-index violation
// (error 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
