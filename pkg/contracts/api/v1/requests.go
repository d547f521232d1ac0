// Package api holds the v1 request contracts shared by the portal
// handlers and their clients.
package api

// TeacherLoginRequest authenticates a teacher for one reporting month.
// The password is the last four digits of the teacher's phone number and
// the month is accepted as 1-12 even though the portal UI offers 4-12.
type TeacherLoginRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Month     int    `json:"month" validate:"required,min=1,max=12"`
}

// StudentLoginRequest identifies a student by ID plus a fragment of their
// name. The fragment length rule lives in the identity matcher so the
// portal's exact error message is preserved.
type StudentLoginRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	NameFragment string `json:"name_fragment" validate:"required"`
}
