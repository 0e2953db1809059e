package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/auth"
)

// AcademicsStore implements academics.Store on PostgreSQL
type AcademicsStore struct {
	db *sql.DB
}

var _ academics.Store = (*AcademicsStore)(nil)

// NewAcademicsStore creates a new academics store
func NewAcademicsStore(db *sql.DB) *AcademicsStore {
	return &AcademicsStore{db: db}
}

// where renders the filter as a WHERE clause with positional arguments
func where(f academics.Filter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.CourseID != "" {
		args = append(args, f.CourseID)
		clauses = append(clauses, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// insertBatch runs one INSERT per row inside a transaction and counts the
// rows the server actually wrote. Rows hitting ON CONFLICT DO NOTHING count
// as zero.
func (s *AcademicsStore) insertBatch(ctx context.Context, query string, rows [][]interface{}) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, mapError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return total, nil
}

func (s *AcademicsStore) CreateCourse(ctx context.Context, c *academics.Course) error {
	var credits sql.NullInt64
	if c.Credits != nil {
		credits = sql.NullInt64{Int64: int64(*c.Credits), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (id, code, name, description, credits, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Code, c.Name, c.Description, credits, c.CreatedByID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create course: %w", mapError(err))
	}
	return nil
}

// ListCourses loads courses and then their materials in a second query
func (s *AcademicsStore) ListCourses(ctx context.Context) ([]*academics.Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, description, credits, created_by, created_at, updated_at
		FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []*academics.Course{}
	byID := make(map[string]*academics.Course)
	for rows.Next() {
		var (
			c       academics.Course
			credits sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &credits, &c.CreatedByID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		if credits.Valid {
			n := int(credits.Int64)
			c.Credits = &n
		}
		courses = append(courses, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return courses, nil
	}

	materials, err := s.queryMaterials(ctx, `ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	for _, m := range materials {
		if c, ok := byID[m.CourseID]; ok {
			c.Materials = append(c.Materials, m)
		}
	}
	return courses, nil
}

func (s *AcademicsStore) CourseExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("course exists: %w", err)
	}
	return exists, nil
}

func (s *AcademicsStore) CreateMaterial(ctx context.Context, m *academics.Material) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO materials (id, course_id, title, url, file_size, mime_type, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.CourseID, m.Title, m.URL, m.FileSize, nullable(m.MimeType), m.UploadedByID, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create material: %w", mapError(err))
	}
	return nil
}

func (s *AcademicsStore) ListMaterials(ctx context.Context, courseID string) ([]*academics.Material, error) {
	return s.queryMaterials(ctx, `WHERE course_id = $1 ORDER BY updated_at DESC`, courseID)
}

func (s *AcademicsStore) queryMaterials(ctx context.Context, tail string, args ...interface{}) ([]*academics.Material, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, title, url, file_size, mime_type, uploaded_by, created_at, updated_at
		FROM materials `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	out := []*academics.Material{}
	for rows.Next() {
		var (
			m    academics.Material
			mime sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.URL, &m.FileSize, &mime, &m.UploadedByID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		if mime.Valid {
			m.MimeType = &mime.String
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *AcademicsStore) CreateAnnouncement(ctx context.Context, a *academics.Announcement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO announcements (id, title, body, posted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Title, a.Body, a.PostedByID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create announcement: %w", mapError(err))
	}
	return nil
}

func (s *AcademicsStore) ListAnnouncements(ctx context.Context) ([]*academics.Announcement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, posted_by, created_at, updated_at
		FROM announcements ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	out := []*academics.Announcement{}
	for rows.Next() {
		var a academics.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.PostedByID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *AcademicsStore) CreateAttendance(ctx context.Context, marks []*academics.Attendance) (int64, error) {
	rows := make([][]interface{}, 0, len(marks))
	for _, m := range marks {
		rows = append(rows, []interface{}{m.ID, m.StudentID, m.CourseID, m.Status, m.Date, m.MarkedByID, m.CreatedAt})
	}
	return s.insertBatch(ctx, `
		INSERT INTO attendance (id, student_id, course_id, status, date, marked_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, course_id, date) DO NOTHING`, rows)
}

func (s *AcademicsStore) ListAttendance(ctx context.Context, f academics.Filter) ([]*academics.Attendance, error) {
	clause, args := where(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, status, date, marked_by, created_at
		FROM attendance`+clause+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	out := []*academics.Attendance{}
	for rows.Next() {
		var a academics.Attendance
		if err := rows.Scan(&a.ID, &a.StudentID, &a.CourseID, &a.Status, &a.Date, &a.MarkedByID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *AcademicsStore) CreateEnrollments(ctx context.Context, enrollments []*academics.Enrollment) (int64, error) {
	rows := make([][]interface{}, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, []interface{}{e.ID, e.StudentID, e.CourseID, e.EnrolledAt})
	}
	return s.insertBatch(ctx, `
		INSERT INTO enrollments (id, student_id, course_id, enrolled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, course_id) DO NOTHING`, rows)
}

func (s *AcademicsStore) ListEnrollments(ctx context.Context, f academics.Filter) ([]*academics.Enrollment, error) {
	clause, args := where(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, enrolled_at
		FROM enrollments`+clause+` ORDER BY enrolled_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	out := []*academics.Enrollment{}
	for rows.Next() {
		var e academics.Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *AcademicsStore) CreateResults(ctx context.Context, results []*academics.Result) (int64, error) {
	rows := make([][]interface{}, 0, len(results))
	for _, r := range results {
		rows = append(rows, []interface{}{r.ID, r.StudentID, r.CourseID, r.Grade, r.NumericGrade, r.MaxPoints,
			r.ExamType, r.DeclaredByID, r.CreatedAt, r.UpdatedAt})
	}
	return s.insertBatch(ctx, `
		INSERT INTO results (id, student_id, course_id, grade, numeric_grade, max_points, exam_type, declared_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, course_id, exam_type) DO NOTHING`, rows)
}

func (s *AcademicsStore) ListResults(ctx context.Context, f academics.Filter) ([]*academics.Result, error) {
	clause, args := where(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, grade, numeric_grade, max_points, exam_type, declared_by, created_at, updated_at
		FROM results`+clause+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := []*academics.Result{}
	for rows.Next() {
		var r academics.Result
		if err := rows.Scan(&r.ID, &r.StudentID, &r.CourseID, &r.Grade, &r.NumericGrade, &r.MaxPoints,
			&r.ExamType, &r.DeclaredByID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *AcademicsStore) CreateEvent(ctx context.Context, e *academics.Event) error {
	roles := make([]string, len(e.EventForRole))
	for i, r := range e.EventForRole {
		roles[i] = string(r)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, start_date, end_date, location, event_for_role, organizer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Title, e.Description, e.StartDate, e.EndDate, e.Location, pq.Array(roles), e.OrganizerID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", mapError(err))
	}
	return nil
}

func (s *AcademicsStore) ListEventsForRole(ctx context.Context, role auth.Role) ([]*academics.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, start_date, end_date, location, event_for_role, organizer_id, created_at
		FROM events WHERE $1 = ANY(event_for_role) ORDER BY created_at DESC`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []*academics.Event{}
	for rows.Next() {
		var (
			e     academics.Event
			roles pq.StringArray
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.Location, &roles, &e.OrganizerID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		for _, r := range roles {
			e.EventForRole = append(e.EventForRole, auth.Role(r))
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
