package domain

import (
	"fmt"
	"time"
)

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID     UserID
	RoleID     RoleID
	AssignedAt time.Time
	// AssignedBy is nil for system assignments.
	AssignedBy *UserID
}

// IsSystemAssigned reports whether no user performed the assignment.
func (a RoleAssignment) IsSystemAssigned() bool { return a.AssignedBy == nil }

// CategoryAssignment is one effective-dated row of a user's category history.
type CategoryAssignment struct {
	UserID         UserID
	CategoryID     UserCategoryID
	IsPrimary      bool
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
}

// NewCategoryAssignment builds an open-ended assignment starting on the date of from.
func NewCategoryAssignment(userID UserID, categoryID UserCategoryID, primary bool, from time.Time) CategoryAssignment {
	return CategoryAssignment{
		UserID:        userID,
		CategoryID:    categoryID,
		IsPrimary:     primary,
		EffectiveFrom: DateOf(from),
	}
}

// ActiveAt reports whether the assignment covers the calendar date of at.
// Both bounds are inclusive; a nil EffectiveUntil is open-ended.
func (a CategoryAssignment) ActiveAt(at time.Time) bool {
	day := DateOf(at)
	if DateOf(a.EffectiveFrom).After(day) {
		return false
	}
	if a.EffectiveUntil != nil && DateOf(*a.EffectiveUntil).Before(day) {
		return false
	}
	return true
}

// Expire returns a copy that ends on the date of until. The row itself is kept as history.
func (a CategoryAssignment) Expire(until time.Time) (CategoryAssignment, error) {
	end := DateOf(until)
	if end.Before(DateOf(a.EffectiveFrom)) {
		return a, fmt.Errorf("%w: until %s precedes from %s", ErrInvalidEffectivePeriod,
			end.Format(time.DateOnly), DateOf(a.EffectiveFrom).Format(time.DateOnly))
	}
	next := a
	next.EffectiveUntil = &end
	return next, nil
}

// ActiveCategoryAssignments filters assignments active at the given time, preserving order.
func ActiveCategoryAssignments(assignments []CategoryAssignment, at time.Time) []CategoryAssignment {
	active := make([]CategoryAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ActiveAt(at) {
			active = append(active, a)
		}
	}
	return active
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
