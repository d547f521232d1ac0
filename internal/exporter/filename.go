package exporter

import (
	"strings"
)

// SummaryFilename builds the CSV download name for a teacher's monthly
// summary, "{TeacherName}_summary.csv".
func SummaryFilename(teacherName string) string {
	return sanitizeFilename(teacherName) + "_summary.csv"
}

// WorkbookFilename builds the XLSX download name for a monthly report
// workbook.
func WorkbookFilename(name string) string {
	return sanitizeFilename(name) + "_report.xlsx"
}

// LogFilename builds the CSV download name for a student's class log,
// "{StudentID}_log.csv".
func LogFilename(studentID string) string {
	return sanitizeFilename(studentID) + "_log.csv"
}

// sanitizeFilename strips path separators and traversal sequences so a
// display name can be embedded in a Content-Disposition filename.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		`"`, "'",
	).Replace(name)
	if name == "" {
		return "export"
	}
	return name
}
