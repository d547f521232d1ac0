package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"classpulse/internal/relation"
)

// Matching failures the portals report as distinct outcomes. Name
// mismatch and unknown ID are deliberately separate so a student gets
// told which half of the credentials failed.
var (
	// ErrNoMatch means no class-log row carries the supplied teacher
	// credentials for the requested month.
	ErrNoMatch = errors.New("no rows match the supplied credentials")

	// ErrStudentNotFound means no class-log row carries the student ID.
	ErrStudentNotFound = errors.New("student id not found")

	// ErrNameMismatch means the ID exists but the name fragment does not
	// occur in the recorded student name.
	ErrNameMismatch = errors.New("name fragment does not match")

	// ErrFragmentTooShort means the name fragment failed validation
	// before any row was examined.
	ErrFragmentTooShort = errors.New("name fragment too short")
)

// TeacherCredentials carries one teacher login attempt. Month is the
// calendar month the teacher wants to report on.
type TeacherCredentials struct {
	TeacherID string
	Password  string
	Month     int
}

// TeacherMatcher selects the class-log rows a teacher may see. The zero
// value is not usable; construct with NewTeacherMatcher.
type TeacherMatcher struct {
	IDColumn       string
	NameColumn     string
	PasswordColumn string
	MonthColumn    string
}

// NewTeacherMatcher returns a matcher bound to the standard class-log
// column names.
func NewTeacherMatcher() TeacherMatcher {
	return TeacherMatcher{
		IDColumn:       "Teachers ID",
		NameColumn:     "Teachers Name",
		PasswordColumn: "Password",
		MonthColumn:    "MM",
	}
}

// Match returns every row whose ID, password and month all equal the
// credentials. IDs and passwords are trimmed and lowercased on both
// sides; month cells are zero-padded to two digits before comparison, so
// "4" and "04" mean the same month. The full matching subset comes back,
// not just the first hit.
func (m TeacherMatcher) Match(rel relation.Relation, creds TeacherCredentials) (relation.Relation, error) {
	id := Normalize(creds.TeacherID)
	pass := Normalize(creds.Password)
	month := fmt.Sprintf("%02d", creds.Month)

	var matched []int
	for i := 0; i < rel.Len(); i++ {
		if Normalize(rel.Value(i, m.IDColumn).String()) != id {
			continue
		}
		if Normalize(rel.Value(i, m.PasswordColumn).String()) != pass {
			continue
		}
		if zeroPad(strings.TrimSpace(rel.Value(i, m.MonthColumn).String()), 2) != month {
			continue
		}
		matched = append(matched, i)
	}
	if len(matched) == 0 {
		return relation.Relation{}, ErrNoMatch
	}
	return rel.Select(matched), nil
}

// DisplayName returns the title-cased teacher name from the first
// matched row.
func (m TeacherMatcher) DisplayName(matched relation.Relation) string {
	if matched.IsEmpty() {
		return ""
	}
	return TitleCase(matched.Value(0, m.NameColumn).String())
}

// StudentCredentials carries one student login attempt. NameFragment is
// any few letters of the student's recorded name.
type StudentCredentials struct {
	StudentID    string
	NameFragment string
}

// StudentMatcher validates student logins against the class log.
type StudentMatcher struct {
	IDColumn    string
	NameColumn  string
	MinFragment int
}

// NewStudentMatcher returns a matcher bound to the standard class-log
// column names and the minimum fragment length.
func NewStudentMatcher() StudentMatcher {
	return StudentMatcher{
		IDColumn:    "Student ID",
		NameColumn:  "Student",
		MinFragment: 4,
	}
}

// Confirm checks the credentials against the first row carrying the
// student's ID and returns that row. The fragment length is validated
// before any row is scanned, so a too-short fragment never reveals
// whether the ID exists.
func (m StudentMatcher) Confirm(rel relation.Relation, creds StudentCredentials) (relation.Row, error) {
	fragment := Normalize(creds.NameFragment)
	if utf8.RuneCountInString(fragment) < m.MinFragment {
		return relation.Row{}, ErrFragmentTooShort
	}

	id := Normalize(creds.StudentID)
	for i := 0; i < rel.Len(); i++ {
		if Normalize(rel.Value(i, m.IDColumn).String()) != id {
			continue
		}
		name := Normalize(rel.Value(i, m.NameColumn).String())
		if !strings.Contains(name, fragment) {
			return relation.Row{}, ErrNameMismatch
		}
		return rel.Row(i), nil
	}
	return relation.Row{}, ErrStudentNotFound
}

// Rows returns every class-log row carrying the student's ID, in source
// order. The result may be empty.
func (m StudentMatcher) Rows(rel relation.Relation, studentID string) relation.Relation {
	id := Normalize(studentID)
	var matched []int
	for i := 0; i < rel.Len(); i++ {
		if Normalize(rel.Value(i, m.IDColumn).String()) == id {
			matched = append(matched, i)
		}
	}
	return rel.Select(matched)
}

// Normalize trims and lowercases credential text for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// zeroPad left-pads s with zeros to the given width.
func zeroPad(s string, width int) string {
	for utf8.RuneCountInString(s) < width {
		s = "0" + s
	}
	return s
}

// TitleCase uppercases the first letter of every alphabetic run and
// lowercases the rest, matching how names are usually cased: "jane doe"
// becomes "Jane Doe" and "o'neil" becomes "O'Neil".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
