package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"classpulse/internal/exporter"
	"classpulse/internal/identity"
	"classpulse/internal/infrastructure"
	"classpulse/internal/relation"
	"classpulse/pkg/contracts/domain"
)

const (
	// profileKeyColumn keys both the Profile and ForSupalearnID
	// worksheets.
	profileKeyColumn = "Teacher id"

	// Subject columns sit at fixed positions in the Profile worksheet;
	// their headers are the subject names and their cells the highest
	// grade level offered.
	subjectColsFrom = 12
	subjectColsTo   = 35
)

// syllabusColumns are the expertise flags a profile row may mark "YES".
var syllabusColumns = []string{"IGCSE", "CBSE", "ICSE"}

// TeacherService implements the teacher portal: login, session views,
// exports and logout.
type TeacherService struct {
	dataset  *Dataset
	matcher  identity.TeacherMatcher
	sessions *identity.Store[identity.TeacherSession]
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewTeacherService creates a teacher service. A nil logger falls back to
// the default logger; metrics may be nil.
func NewTeacherService(dataset *Dataset, sessions *identity.Store[identity.TeacherSession], metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *TeacherService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeacherService{
		dataset:  dataset,
		matcher:  identity.NewTeacherMatcher(),
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "teacher_service")),
	}
}

// Login authenticates the credentials against the class log and, on
// success, derives every portal view once and stores it as an immutable
// session. The returned report carries the session token.
func (s *TeacherService) Login(ctx context.Context, creds identity.TeacherCredentials) (domain.TeacherReport, error) {
	start := time.Now()

	classLog, err := s.dataset.ClassLog(ctx)
	if err != nil {
		infrastructure.RecordLoginMetrics(ctx, s.metrics, "teacher", "source_unavailable", time.Since(start))
		return domain.TeacherReport{}, err
	}

	matched, err := s.matcher.Match(classLog, creds)
	if err != nil {
		infrastructure.RecordLoginMetrics(ctx, s.metrics, "teacher", "rejected", time.Since(start))
		s.logger.InfoContext(ctx, "teacher login rejected",
			slog.String("teacher_id", creds.TeacherID),
			slog.Int("month", creds.Month))
		return domain.TeacherReport{}, ErrInvalidCredentials
	}

	sess := s.buildSession(ctx, matched, creds)
	s.sessions.Put(sess.Token, sess)

	infrastructure.RecordSessionCreated(ctx, s.metrics, "teacher")
	infrastructure.RecordLoginMetrics(ctx, s.metrics, "teacher", "success", time.Since(start))
	s.logger.InfoContext(ctx, "teacher login",
		slog.String("teacher_id", sess.TeacherID),
		slog.Int("month", sess.Month),
		slog.Int("classes", sess.Log.Len()))

	return domain.TeacherReport{
		Token:        sess.Token,
		TeacherID:    sess.TeacherID,
		TeacherName:  sess.TeacherName,
		Month:        sess.Month,
		SupalearnID:  sess.SupalearnID,
		ClassQuality: sess.ClassQuality,
		Classes:      sess.Log.Len(),
		TotalHours:   relation.Total(sess.Log, "Hr"),
		CreatedAt:    sess.CreatedAt,
	}, nil
}

// buildSession derives the session views from the authorized rows. The
// contact, profile and supalearn worksheets are each optional: when one
// is unavailable the session is built without it.
func (s *TeacherService) buildSession(ctx context.Context, matched relation.Relation, creds identity.TeacherCredentials) identity.TeacherSession {
	merged := s.mergeContacts(ctx, matched)

	logView := merged.
		Project("Date", "Student ID", "Student", "Class", "Syllabus", "Hr", "Type of class").
		SortBy("Date", "Student ID")

	sess := identity.TeacherSession{
		Token:         uuid.New().String(),
		TeacherID:     strings.TrimSpace(creds.TeacherID),
		TeacherName:   s.matcher.DisplayName(matched),
		Month:         creds.Month,
		Matched:       matched,
		Log:           logView,
		DuplicateRows: relation.DetectDuplicates(logView, "Date", "Student ID"),
		Hours:         relation.SumBy(logView, []string{"Class", "Syllabus", "Type of class"}, "Hr"),
		Students:      merged.Project("Student ID", "Student", "EM", "Phone Number").Distinct().SortBy("Student"),
		CreatedAt:     time.Now(),
	}

	if profiles, err := s.dataset.Profiles(ctx); err != nil {
		s.logger.WarnContext(ctx, "profile worksheet unavailable",
			slog.String("error", err.Error()))
	} else if i, ok := relation.FindIndex(profiles, profileKeyColumn, creds.TeacherID); ok {
		sess.Profile = profiles.Select([]int{i})
	}

	if roster, err := s.dataset.Supalearn(ctx); err != nil {
		s.logger.WarnContext(ctx, "supalearn worksheet unavailable",
			slog.String("error", err.Error()))
	} else if row, ok := relation.FindOne(roster, profileKeyColumn, creds.TeacherID); ok {
		sess.SupalearnID = strings.TrimSpace(row.Get("SupalearnID").String())
		sess.ClassQuality = strings.TrimSpace(row.Get("DemoFit").String())
	}

	return sess
}

// mergeContacts left-joins EM contact details onto the authorized rows.
// A missing or unusable contact worksheet degrades to the rows alone.
func (s *TeacherService) mergeContacts(ctx context.Context, matched relation.Relation) relation.Relation {
	students, err := s.dataset.StudentData(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "student data unavailable, log served without contacts",
			slog.String("error", err.Error()))
		return matched
	}

	base := matched.Rename(map[string]string{"Student id": "Student ID"})
	lookup := students.Rename(map[string]string{"Student id": "Student ID", "EM Phone": "Phone Number"})
	merged := relation.LeftJoin(base, lookup, "Student ID", "EM", "Phone Number")
	if merged.IsEmpty() {
		return base
	}
	return merged
}

// Session returns the live session stored under token.
func (s *TeacherService) Session(ctx context.Context, token string) (identity.TeacherSession, error) {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return identity.TeacherSession{}, ErrSessionNotFound
	}
	return sess, nil
}

// Logout deletes the session stored under token.
func (s *TeacherService) Logout(ctx context.Context, token string) error {
	if _, ok := s.sessions.Get(token); !ok {
		return ErrSessionNotFound
	}
	s.sessions.Delete(token)
	infrastructure.RecordSessionClosed(ctx, s.metrics, "teacher")
	s.logger.InfoContext(ctx, "teacher logout")
	return nil
}

// Log returns the merged, sorted class log with duplicate annotations.
func (s *TeacherService) Log(ctx context.Context, token string) (domain.LogView, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return domain.LogView{}, err
	}
	return domain.LogView{Log: tableOf(sess.Log), Duplicates: sess.DuplicateRows}, nil
}

// Summary returns the consolidated hours by class, syllabus and class
// type.
func (s *TeacherService) Summary(ctx context.Context, token string) (domain.HoursSummary, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return domain.HoursSummary{}, err
	}
	return domain.HoursSummary{
		Hours:      tableOf(sess.Hours),
		TotalHours: relation.Total(sess.Hours, "Hr"),
	}, nil
}

// Students returns the distinct student and EM contact rows.
func (s *TeacherService) Students(ctx context.Context, token string) (domain.StudentsView, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return domain.StudentsView{}, err
	}
	return domain.StudentsView{Students: tableOf(sess.Students)}, nil
}

// Profile returns the teacher's profile card, or ErrProfileNotFound when
// the profile worksheet has no row for this teacher.
func (s *TeacherService) Profile(ctx context.Context, token string) (domain.ProfileDetail, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return domain.ProfileDetail{}, err
	}
	if sess.Profile.IsEmpty() {
		return domain.ProfileDetail{}, ErrProfileNotFound
	}
	return profileDetail(sess.TeacherID, sess.Profile), nil
}

// ExportCSV renders the session's class log as a BOM-prefixed CSV named
// after the teacher.
func (s *TeacherService) ExportCSV(ctx context.Context, token string) (string, []byte, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return "", nil, err
	}

	start := time.Now()
	data, err := exporter.RenderCSV(sess.Log)
	infrastructure.RecordExportMetrics(ctx, s.metrics, "csv", time.Since(start), err)
	if err != nil {
		return "", nil, fmt.Errorf("render csv: %w", err)
	}
	return exporter.SummaryFilename(sess.TeacherName), data, nil
}

// ExportXLSX renders the class log and consolidated hours as a two-sheet
// workbook.
func (s *TeacherService) ExportXLSX(ctx context.Context, token string) (string, []byte, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return "", nil, err
	}

	start := time.Now()
	data, err := exporter.RenderXLSX([]exporter.Section{
		{Title: "Class Log", Rel: sess.Log},
		{Title: "Summary", Rel: sess.Hours},
	})
	infrastructure.RecordExportMetrics(ctx, s.metrics, "xlsx", time.Since(start), err)
	if err != nil {
		return "", nil, fmt.Errorf("render xlsx: %w", err)
	}
	return exporter.WorkbookFilename(sess.TeacherName), data, nil
}

// profileDetail flattens a profile row into the wire shape. The contact
// fields are named columns; subjects are positional, header naming the
// subject and cell the highest grade level offered.
func profileDetail(teacherID string, profile relation.Relation) domain.ProfileDetail {
	row := profile.Row(0)
	detail := domain.ProfileDetail{
		TeacherID:          teacherID,
		Phone:              strings.TrimSpace(row.Get("Phone number").String()),
		Email:              strings.TrimSpace(row.Get("Mail. id").String()),
		Qualification:      strings.TrimSpace(row.Get("Qualification").String()),
		AvailableSlots:     strings.TrimSpace(row.Get("Available Slots").String()),
		LanguagePreference: strings.TrimSpace(row.Get("Language preferred  in Class").String()),
		Syllabus:           []string{},
		Subjects:           []domain.SubjectLevel{},
	}

	for _, col := range syllabusColumns {
		if strings.ToUpper(strings.TrimSpace(row.Get(col).String())) == "YES" {
			detail.Syllabus = append(detail.Syllabus, col)
		}
	}

	cols := profile.Columns()
	for j := subjectColsFrom; j < subjectColsTo && j < row.Len(); j++ {
		level := strings.TrimSpace(row.At(j).String())
		if level == "" {
			continue
		}
		detail.Subjects = append(detail.Subjects, domain.SubjectLevel{
			Subject: cols[j],
			Level:   fmt.Sprintf("Upto %sth", level),
		})
	}
	return detail
}
