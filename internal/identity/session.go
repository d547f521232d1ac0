package identity

import (
	"time"

	"classpulse/internal/relation"
)

// TeacherSession is the immutable result of one successful teacher
// login. Every view the portal serves is derived once, at login time,
// from the rows the matcher authorized; later worksheet changes are only
// picked up by logging in again after a refresh.
type TeacherSession struct {
	Token       string
	TeacherID   string
	TeacherName string
	Month       int

	// SupalearnID and ClassQuality come from the supplementary roster and
	// may be empty when the teacher has no entry there.
	SupalearnID  string
	ClassQuality string

	// Matched is the full authorized row set; Log is its sorted display
	// projection with DuplicateRows marking suspect entries by Log index.
	Matched       relation.Relation
	Log           relation.Relation
	DuplicateRows []int

	// Hours consolidates Log by class, syllabus and class type.
	Hours relation.Relation

	// Students lists each distinct student with educational-manager
	// contact details.
	Students relation.Relation

	// Profile holds the teacher's profile row, or no rows when the
	// profile worksheet has no entry for this teacher.
	Profile relation.Relation

	CreatedAt time.Time
}

// StudentSession is the immutable result of one successful student
// login.
type StudentSession struct {
	Token       string
	StudentID   string
	StudentName string

	// Log is the student's visible slice of the class log.
	Log relation.Relation

	// Hours totals class hours per subject; TotalHours sums them all.
	Hours      relation.Relation
	TotalHours float64

	CreatedAt time.Time
}
