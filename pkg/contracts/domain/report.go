package domain

import "time"

// TeacherReport is the session envelope returned by a successful teacher
// login. SupalearnID and ClassQuality come from the supplementary roster
// and are empty when the teacher has no entry there.
type TeacherReport struct {
	Token        string    `json:"token"`
	TeacherID    string    `json:"teacher_id"`
	TeacherName  string    `json:"teacher_name"`
	Month        int       `json:"month"`
	SupalearnID  string    `json:"supalearn_id,omitempty"`
	ClassQuality string    `json:"class_quality,omitempty"`
	Classes      int       `json:"classes"`
	TotalHours   float64   `json:"total_hours"`
	CreatedAt    time.Time `json:"created_at"`
}

// StudentReport is the session envelope returned by a successful student
// login.
type StudentReport struct {
	Token       string    `json:"token"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Classes     int       `json:"classes"`
	TotalHours  float64   `json:"total_hours"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogView is a sorted class log with the indices of rows whose
// (Date, Student ID) pair appears more than once. Duplicates are
// annotated for highlighting, never removed.
type LogView struct {
	Log        Table `json:"log"`
	Duplicates []int `json:"duplicates,omitempty"`
}

// HoursSummary consolidates logged hours. For teachers the grouping is
// (Class, Syllabus, Type of class); for students it is Subject.
type HoursSummary struct {
	Hours      Table   `json:"hours"`
	TotalHours float64 `json:"total_hours"`
}

// StudentsView lists each distinct student with educational-manager
// contact details, sorted by student name.
type StudentsView struct {
	Students Table `json:"students"`
}

// SubjectLevel is one subject a teacher handles with the highest grade
// level offered, e.g. {Subject: "Physics", Level: "Upto 10th"}.
type SubjectLevel struct {
	Subject string `json:"subject"`
	Level   string `json:"level"`
}

// ProfileDetail is a teacher's profile card: contact fields, syllabus
// expertise flags that are marked YES, and the subjects handled.
type ProfileDetail struct {
	TeacherID          string         `json:"teacher_id"`
	Phone              string         `json:"phone,omitempty"`
	Email              string         `json:"email,omitempty"`
	Qualification      string         `json:"qualification,omitempty"`
	AvailableSlots     string         `json:"available_slots,omitempty"`
	LanguagePreference string         `json:"language_preference,omitempty"`
	Syllabus           []string       `json:"syllabus"`
	Subjects           []SubjectLevel `json:"subjects"`
}
