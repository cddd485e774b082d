package worktime

import (
	"slices"
	"time"
)

// calculator holds the behavior shared by every strategy.
type calculator struct{}

func (calculator) IsOvernightShift(shift *WorkShift) bool {
	return shift != nil && shift.IsOvernight()
}

func (calculator) CalculateOvernightEndTime(startDate time.Time, end ClockTime) time.Time {
	return end.On(startDate.AddDate(0, 0, 1))
}

func (calculator) CalculateCoreWorkMinutes(shift *WorkShift) int {
	if shift == nil {
		return DefaultWorkMinutes
	}
	return shift.workMinutes()
}

func (calculator) CalculateBreakMinutes(shift *WorkShift) int {
	if shift == nil || shift.BreakMinutes < 0 {
		return 0
	}
	return shift.BreakMinutes
}

// scheduledWindow returns the nominal start and end of the shift instance starting on date.
func scheduledWindow(date time.Time, shift *WorkShift) (time.Time, time.Time) {
	start := shift.StartTime.On(date)
	if shift.IsOvernight() {
		return start, shift.EndTime.On(date.AddDate(0, 0, 1))
	}
	return start, shift.EndTime.On(date)
}

// instanceDate returns the day the shift instance containing punch started on.
// For overnight shifts the off-duty gap is split at its midpoint: punches
// before it belong to the instance that started the previous day.
func instanceDate(punch time.Time, shift *WorkShift) time.Time {
	day := startOfDay(punch)
	if !shift.IsOvernight() {
		return day
	}
	end, start := shift.EndTime.Minutes(), shift.StartTime.Minutes()
	midpoint := end + (start-end)/2
	if minuteOfDay(punch) < midpoint {
		return day.AddDate(0, 0, -1)
	}
	return day
}

// emptyRange is the zero-length punch range used when there is no shift
func emptyRange(date time.Time) (time.Time, time.Time) {
	day := startOfDay(date)
	return day, day
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// minutesBetween returns whole minutes from a to b, negative when b is before a.
func minutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// overtime applies the minimum overtime threshold; values below it count as zero.
func overtime(minutes int, shift *WorkShift) int {
	if minutes <= 0 || minutes < shift.MinOvertimeMinutes {
		return 0
	}
	return minutes
}

func sortedRecords(records []PunchRecord) []PunchRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b PunchRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted
}

// clockInOut returns the earliest valid IN and the latest valid OUT.
func clockInOut(records []PunchRecord) (in, out *time.Time) {
	for _, r := range records {
		if !r.IsValid() {
			continue
		}
		ts := r.Timestamp
		switch r.Type {
		case PunchIn:
			if in == nil || ts.Before(*in) {
				in = &ts
			}
		case PunchOut:
			if out == nil || ts.After(*out) {
				out = &ts
			}
		}
	}
	return in, out
}

// pairSpans pairs each IN with the next OUT after it. Repeated INs keep the
// first one; OUTs without a pending IN are ignored.
func pairSpans(records []PunchRecord, classify func(start, end time.Time) SpanKind) []WorkSpan {
	spans := make([]WorkSpan, 0)
	var pending *time.Time
	for _, r := range sortedRecords(records) {
		if !r.IsValid() {
			continue
		}
		switch r.Type {
		case PunchIn:
			if pending == nil {
				ts := r.Timestamp
				pending = &ts
			}
		case PunchOut:
			if pending == nil {
				continue
			}
			spans = append(spans, WorkSpan{
				Start:   *pending,
				End:     r.Timestamp,
				Minutes: minutesBetween(*pending, r.Timestamp),
				Kind:    classify(*pending, r.Timestamp),
			})
			pending = nil
		}
	}
	return spans
}

func totalMinutes(spans []WorkSpan) int {
	total := 0
	for _, s := range spans {
		total += s.Minutes
	}
	return total
}

func hasInAndOut(records []PunchRecord) bool {
	var in, out bool
	for _, r := range records {
		switch r.Type {
		case PunchIn:
			in = true
		case PunchOut:
			out = true
		}
	}
	return in && out
}

func allValid(records []PunchRecord) bool {
	for _, r := range records {
		if !r.IsValid() {
			return false
		}
	}
	return true
}

// statusFor derives the day status from signed late/early values and overtime.
func statusFor(late, early, overtime int) Status {
	switch {
	case late > 0 && early > 0:
		return StatusLateAndEarlyLeave
	case late > 0:
		return StatusLate
	case early > 0:
		return StatusEarlyLeave
	case overtime > 0:
		return StatusOvertime
	default:
		return StatusNormal
	}
}

func invalidResult(name string, shift *WorkShift) *CalculateResult {
	return &CalculateResult{
		Strategy:     name,
		Status:       StatusInvalid,
		BreakMinutes: calculator{}.CalculateBreakMinutes(shift),
		Spans:        []WorkSpan{},
	}
}

func normalSpan(time.Time, time.Time) SpanKind {
	return SpanNormal
}
