package persistence

import "strings"

// resultSortColumns are the attendance_results columns results can be
// ordered by. Anything else would be interpolated into ORDER BY, so it is
// replaced with the default.
var resultSortColumns = map[string]bool{
	"processed_at": true,
	"work_date":    true,
	"outcome":      true,
	"created_at":   true,
}

// ResultSort is an ORDER BY for attendance_results that is safe to
// interpolate
type ResultSort struct {
	Column    string
	Direction string // ASC or DESC
}

// ParseResultSort whitelists column and direction. Unknown columns become
// processed_at and anything but asc becomes DESC, so the default is newest
// first.
func ParseResultSort(column, direction string) ResultSort {
	sort := ResultSort{Column: "processed_at", Direction: "DESC"}
	if c := strings.TrimSpace(column); resultSortColumns[c] {
		sort.Column = c
	}
	if strings.EqualFold(strings.TrimSpace(direction), "asc") {
		sort.Direction = "ASC"
	}
	return sort
}

// Clause renders the sort for gorm's Order
func (s ResultSort) Clause() string {
	return s.Column + " " + s.Direction
}
