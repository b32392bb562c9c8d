package model

import "fmt"

// AccessLevel is a teacher's capability on a class. Levels are ordered by
// rank; never compare the string values directly, use Rank or AtLeast.
type AccessLevel string

const (
	AccessNone      AccessLevel = "NONE"
	AccessView      AccessLevel = "VIEW"
	AccessCoTeacher AccessLevel = "CO_TEACHER"
	AccessFull      AccessLevel = "FULL"
	// AccessSubstitute is a time-boxed grant that ranks equal to FULL.
	// Assignments at this level always carry an expiry.
	AccessSubstitute AccessLevel = "SUBSTITUTE"
)

// LabelOwner is a display label, not a rank. It is applied by the resolver
// when an owned exam resolves to an editable rank (or has no assigned
// classes); it never influences the editable/deletable flags.
const LabelOwner = "OWNER"

// Rank returns the ordering position: NONE < VIEW < CO_TEACHER < FULL,
// with SUBSTITUTE sharing the FULL rank.
func (l AccessLevel) Rank() int {
	switch l {
	case AccessView:
		return 1
	case AccessCoTeacher:
		return 2
	case AccessFull, AccessSubstitute:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether l ranks at or above other.
func (l AccessLevel) AtLeast(other AccessLevel) bool {
	return l.Rank() >= other.Rank()
}

// Editable reports whether the level permits modifying an exam.
func (l AccessLevel) Editable() bool {
	return l.Rank() >= AccessCoTeacher.Rank()
}

// Deletable reports whether the level permits deleting an exam. Only the
// FULL rank qualifies; CO_TEACHER can edit but not delete.
func (l AccessLevel) Deletable() bool {
	return l.Rank() >= AccessFull.Rank()
}

// Valid reports whether l is one of the known levels.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessNone, AccessView, AccessCoTeacher, AccessFull, AccessSubstitute:
		return true
	}
	return false
}

// ParseAccessLevel converts a stored or user-supplied string to an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	l := AccessLevel(s)
	if !l.Valid() {
		return AccessNone, fmt.Errorf("unknown access level %q", s)
	}
	return l, nil
}
