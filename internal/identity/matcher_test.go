package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpulse/internal/relation"
)

func classLog() relation.Relation {
	return relation.Build(
		[]string{"Teachers ID", "Teachers Name", "Password", "MM", "Student ID", "Student", "Hr"},
		[][]string{
			{" T1 ", "jane doe", "9999", "4", "S1", "Ali Hassan", "1"},
			{"t1", "jane doe", "9999", "04", "S2", "Sara Ahmed", "2"},
			{"t1", "jane doe", "9999", "05", "S1", "Ali Hassan", "1"},
			{"t2", "omar k", "1234", "04", "S3", "Lina Aziz", "1.5"},
		},
		"Hr",
	)
}

func TestTeacherMatchReturnsFullSubset(t *testing.T) {
	m := NewTeacherMatcher()
	creds := TeacherCredentials{TeacherID: "T1", Password: "9999", Month: 4}

	matched, err := m.Match(classLog(), creds)

	require.NoError(t, err)
	// Both April rows for t1 come back: "4" and "04" are the same month
	// and the padded ID cell still matches.
	require.Equal(t, 2, matched.Len())
	assert.Equal(t, "S1", matched.Value(0, "Student ID").String())
	assert.Equal(t, "S2", matched.Value(1, "Student ID").String())
	assert.Equal(t, "Jane Doe", m.DisplayName(matched))
}

func TestTeacherMatchIsDeterministic(t *testing.T) {
	m := NewTeacherMatcher()
	creds := TeacherCredentials{TeacherID: "t1", Password: " 9999 ", Month: 4}

	first, err := m.Match(classLog(), creds)
	require.NoError(t, err)
	second, err := m.Match(classLog(), creds)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := 0; i < first.Len(); i++ {
		assert.True(t, first.Value(i, "Student ID").Equal(second.Value(i, "Student ID")))
	}
}

func TestTeacherMatchFailures(t *testing.T) {
	m := NewTeacherMatcher()

	tests := []struct {
		name  string
		creds TeacherCredentials
	}{
		{"unknown id", TeacherCredentials{TeacherID: "t9", Password: "9999", Month: 4}},
		{"wrong password", TeacherCredentials{TeacherID: "t1", Password: "0000", Month: 4}},
		{"no rows for month", TeacherCredentials{TeacherID: "t1", Password: "9999", Month: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Match(classLog(), tt.creds)
			assert.ErrorIs(t, err, ErrNoMatch)
		})
	}
}

func TestTeacherMatchEmptyRelation(t *testing.T) {
	m := NewTeacherMatcher()

	_, err := m.Match(relation.Relation{}, TeacherCredentials{TeacherID: "t1", Password: "9999", Month: 4})

	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestStudentConfirm(t *testing.T) {
	m := NewStudentMatcher()

	row, err := m.Confirm(classLog(), StudentCredentials{StudentID: " s1 ", NameFragment: "HASS"})

	require.NoError(t, err)
	assert.Equal(t, "Ali Hassan", row.Get("Student").String())
}

func TestStudentConfirmDistinguishesFailures(t *testing.T) {
	m := NewStudentMatcher()

	_, err := m.Confirm(classLog(), StudentCredentials{StudentID: "s9", NameFragment: "hass"})
	assert.ErrorIs(t, err, ErrStudentNotFound)

	_, err = m.Confirm(classLog(), StudentCredentials{StudentID: "s1", NameFragment: "zzzz"})
	assert.ErrorIs(t, err, ErrNameMismatch)
}

func TestStudentConfirmRejectsShortFragmentBeforeScan(t *testing.T) {
	m := NewStudentMatcher()

	// The ID is unknown, but the fragment check comes first.
	_, err := m.Confirm(classLog(), StudentCredentials{StudentID: "s9", NameFragment: " abc "})

	assert.ErrorIs(t, err, ErrFragmentTooShort)
}

func TestStudentRows(t *testing.T) {
	m := NewStudentMatcher()

	rows := m.Rows(classLog(), "S1")

	require.Equal(t, 2, rows.Len())
	assert.Equal(t, "4", rows.Value(0, "MM").String())
	assert.Equal(t, "05", rows.Value(1, "MM").String())

	assert.True(t, m.Rows(classLog(), "S9").IsEmpty())
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane doe", "Jane Doe"},
		{"JANE DOE", "Jane Doe"},
		{"o'neil", "O'Neil"},
		{"  mary-jane ", "  Mary-Jane "},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleCase(tt.in), "input %q", tt.in)
	}
}
