package schedule

import (
	"slices"
	"sort"
)

// Resolve attempts to clear conflicts found in data using strategy.
//
// AUTO works on a private copy of data, so later conflicts see the edits
// made for earlier ones. MANUAL, and any strategy it does not know, resolves
// nothing and reports every conflict as unresolved. data is never modified.
func Resolve(data *ScheduleData, conflicts []Conflict, strategy ResolutionStrategy) *Resolution {
	res := &Resolution{
		Strategy:   strategy,
		Unresolved: []Conflict{},
		Changes:    []Change{},
	}
	if strategy != StrategyAuto {
		res.Unresolved = append(res.Unresolved, conflicts...)
		return res
	}
	if len(conflicts) == 0 {
		res.ResolutionSuccessful = true
		return res
	}

	r := &autoResolver{working: data.Clone(), removed: make(map[string]bool)}
	if r.working == nil {
		r.working = &ScheduleData{}
	}
	for _, c := range conflicts {
		changes, ok := r.resolve(c)
		if !ok {
			res.Unresolved = append(res.Unresolved, c)
			continue
		}
		res.ResolvedCount++
		res.Changes = append(res.Changes, changes...)
	}
	res.ResolutionSuccessful = res.ResolvedCount > 0
	return res
}

// ApplyResolution returns data with the resolution's changes applied.
// An unsuccessful or nil resolution returns data itself, untouched;
// otherwise the result is a new ScheduleData.
func ApplyResolution(data *ScheduleData, res *Resolution) *ScheduleData {
	if data == nil || res == nil || !res.ResolutionSuccessful {
		return data
	}
	out := data.Clone()
	for _, ch := range res.Changes {
		apply(out, ch)
	}
	return out
}

func apply(d *ScheduleData, ch Change) {
	i, ok := d.assignment(ch.AssignmentID)
	if !ok {
		return
	}
	switch ch.Kind {
	case ChangeReassign:
		d.Assignments[i].EmployeeID = ch.NewEmployeeID
	case ChangeRemove:
		d.Assignments = slices.Delete(d.Assignments, i, i+1)
	}
}

type autoResolver struct {
	working *ScheduleData
	removed map[string]bool
}

func (r *autoResolver) resolve(c Conflict) ([]Change, bool) {
	switch c.Type {
	case ConflictSkill:
		return r.reassign(c)
	case ConflictOverlap:
		return r.dropLater(c)
	case ConflictCapacity:
		return r.trim(c)
	default:
		return nil, false
	}
}

func (r *autoResolver) record(ch Change) {
	apply(r.working, ch)
	if ch.Kind == ChangeRemove {
		r.removed[ch.AssignmentID] = true
	}
}

// reassign moves the assignment to the first standby employee who holds
// every required skill and is free for the whole interval.
func (r *autoResolver) reassign(c Conflict) ([]Change, bool) {
	if len(c.AssignmentIDs) == 0 {
		return nil, false
	}
	id := c.AssignmentIDs[0]
	i, ok := r.working.assignment(id)
	if !ok {
		return nil, r.removed[id]
	}
	target := r.working.Assignments[i]
	required := r.working.ShiftRequirements[target.ShiftID]

	for _, candidate := range r.working.StandbyEmployees {
		if candidate == target.EmployeeID {
			continue
		}
		if len(missingSkills(required, r.working.EmployeeSkills[candidate])) > 0 {
			continue
		}
		if r.busy(candidate, target) {
			continue
		}
		ch := Change{Kind: ChangeReassign, AssignmentID: id, NewEmployeeID: candidate, ConflictID: c.ID}
		r.record(ch)
		return []Change{ch}, true
	}
	return nil, false
}

func (r *autoResolver) busy(employee string, target Assignment) bool {
	for _, a := range r.working.Assignments {
		if a.EmployeeID == employee && a.ID != target.ID && a.overlaps(target) {
			return true
		}
	}
	return false
}

// dropLater removes the later-starting assignment of an overlapping pair.
// A pair where either side is already gone counts as resolved.
func (r *autoResolver) dropLater(c Conflict) ([]Change, bool) {
	if len(c.AssignmentIDs) < 2 {
		return nil, false
	}
	var pair []Assignment
	for _, id := range c.AssignmentIDs[:2] {
		i, ok := r.working.assignment(id)
		if !ok {
			return nil, r.removed[id]
		}
		pair = append(pair, r.working.Assignments[i])
	}
	if !pair[0].overlaps(pair[1]) {
		return nil, true
	}

	later := pair[1]
	if pair[0].Start.After(pair[1].Start) {
		later = pair[0]
	}
	ch := Change{Kind: ChangeRemove, AssignmentID: later.ID, ConflictID: c.ID}
	r.record(ch)
	return []Change{ch}, true
}

// trim removes assignments over the shift's capacity, lowest precedence
// (largest Priority value) first. On ties the later assignment goes first.
func (r *autoResolver) trim(c Conflict) ([]Change, bool) {
	limit, ok := r.working.ShiftCapacities[c.ShiftID]
	if !ok || limit <= 0 {
		return nil, false
	}

	var idx []int
	for i, a := range r.working.Assignments {
		if a.ShiftID == c.ShiftID {
			idx = append(idx, i)
		}
	}
	excess := len(idx) - limit
	if excess <= 0 {
		return nil, true
	}

	as := r.working.Assignments
	sort.SliceStable(idx, func(x, y int) bool {
		if as[idx[x]].Priority != as[idx[y]].Priority {
			return as[idx[x]].Priority > as[idx[y]].Priority
		}
		return idx[x] > idx[y]
	})

	changes := make([]Change, 0, excess)
	for _, i := range idx[:excess] {
		changes = append(changes, Change{Kind: ChangeRemove, AssignmentID: as[i].ID, ConflictID: c.ID})
	}
	for _, ch := range changes {
		r.record(ch)
	}
	return changes, true
}
