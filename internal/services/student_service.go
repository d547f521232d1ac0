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

// studentLogColumns is the slice of the class log a student may see.
// Columns absent from the worksheet are skipped.
var studentLogColumns = []string{"Date", "Student ID", "Student", "Hr", "Teacher", "Subject"}

// StudentService implements the student portal: login, log and summary
// views, export and logout.
type StudentService struct {
	dataset  *Dataset
	matcher  identity.StudentMatcher
	sessions *identity.Store[identity.StudentSession]
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewStudentService creates a student service. A nil logger falls back to
// the default logger; metrics may be nil.
func NewStudentService(dataset *Dataset, sessions *identity.Store[identity.StudentSession], metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *StudentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentService{
		dataset:  dataset,
		matcher:  identity.NewStudentMatcher(),
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "student_service")),
	}
}

// Login confirms the student's identity against the class log and, on
// success, collects every row carrying the ID into an immutable session.
// The fragment is validated before the log is scanned, so a short
// fragment is rejected without revealing whether the ID exists.
func (s *StudentService) Login(ctx context.Context, creds identity.StudentCredentials) (domain.StudentReport, error) {
	start := time.Now()

	classLog, err := s.dataset.ClassLog(ctx)
	if err != nil {
		infrastructure.RecordLoginMetrics(ctx, s.metrics, "student", "source_unavailable", time.Since(start))
		return domain.StudentReport{}, err
	}

	confirmed, err := s.matcher.Confirm(classLog, creds)
	if err != nil {
		infrastructure.RecordLoginMetrics(ctx, s.metrics, "student", "rejected", time.Since(start))
		s.logger.InfoContext(ctx, "student login rejected",
			slog.String("student_id", creds.StudentID),
			slog.String("reason", err.Error()))
		return domain.StudentReport{}, err
	}

	sess := s.buildSession(confirmed, creds, classLog)
	s.sessions.Put(sess.Token, sess)

	infrastructure.RecordSessionCreated(ctx, s.metrics, "student")
	infrastructure.RecordLoginMetrics(ctx, s.metrics, "student", "success", time.Since(start))
	s.logger.InfoContext(ctx, "student login",
		slog.String("student_id", sess.StudentID),
		slog.Int("classes", sess.Log.Len()))

	return domain.StudentReport{
		Token:       sess.Token,
		StudentID:   sess.StudentID,
		StudentName: sess.StudentName,
		Classes:     sess.Log.Len(),
		TotalHours:  sess.TotalHours,
		CreatedAt:   sess.CreatedAt,
	}, nil
}

// buildSession derives the session views from the confirmed identity row
// and the full class log. The second pass collects every row under the
// student's ID, not just the row that confirmed the name.
func (s *StudentService) buildSession(confirmed relation.Row, creds identity.StudentCredentials, classLog relation.Relation) identity.StudentSession {
	rows := s.matcher.Rows(classLog, creds.StudentID)
	logView := rows.Project(studentLogColumns...).SortBy("Date")
	hours := relation.SumBy(logView, []string{"Subject"}, "Hr")

	return identity.StudentSession{
		Token:       uuid.New().String(),
		StudentID:   strings.TrimSpace(creds.StudentID),
		StudentName: identity.TitleCase(confirmed.Get("Student").String()),
		Log:         logView,
		Hours:       hours,
		TotalHours:  relation.Total(logView, "Hr"),
		CreatedAt:   time.Now(),
	}
}

// Session returns the live session stored under token.
func (s *StudentService) Session(ctx context.Context, token string) (identity.StudentSession, error) {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return identity.StudentSession{}, ErrSessionNotFound
	}
	return sess, nil
}

// Logout deletes the session stored under token.
func (s *StudentService) Logout(ctx context.Context, token string) error {
	if _, ok := s.sessions.Get(token); !ok {
		return ErrSessionNotFound
	}
	s.sessions.Delete(token)
	infrastructure.RecordSessionClosed(ctx, s.metrics, "student")
	s.logger.InfoContext(ctx, "student logout")
	return nil
}

// Log returns the student's slice of the class log, sorted by date.
func (s *StudentService) Log(ctx context.Context, token string) (domain.LogView, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return domain.LogView{}, err
	}
	return domain.LogView{Log: tableOf(sess.Log)}, nil
}

// Summary returns the hours consolidated by subject with the grand
// total.
func (s *StudentService) Summary(ctx context.Context, token string) (domain.HoursSummary, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return domain.HoursSummary{}, err
	}
	return domain.HoursSummary{
		Hours:      tableOf(sess.Hours),
		TotalHours: sess.TotalHours,
	}, nil
}

// ExportCSV renders the session's class log as a BOM-prefixed CSV named
// after the student ID.
func (s *StudentService) ExportCSV(ctx context.Context, token string) (string, []byte, error) {
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
	return exporter.LogFilename(sess.StudentID), data, nil
}

// ExportXLSX renders the class log and subject summary as a two-sheet
// workbook.
func (s *StudentService) ExportXLSX(ctx context.Context, token string) (string, []byte, error) {
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
	return exporter.WorkbookFilename(sess.StudentID), data, nil
}
