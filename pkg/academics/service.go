package academics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// ErrNothingCreated is returned when every row of a batch was a duplicate
var ErrNothingCreated = errors.New("no records were created")

// Service applies the academic rules on top of a Store. Inputs are the
// normalized request bodies produced by the validation stage.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new academics service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) stamp() time.Time {
	return s.now().UTC()
}

// CreateCourse adds a course owned by actor. A duplicate code is
// auth.ErrConflict.
func (s *Service) CreateCourse(ctx context.Context, actor *auth.Principal, req validation.CourseRequest) (*Course, error) {
	now := s.stamp()
	c := &Course{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Credits:     req.Credits,
		CreatedByID: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCourse(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCourses returns every course with its materials
func (s *Service) ListCourses(ctx context.Context) ([]*Course, error) {
	return s.store.ListCourses(ctx)
}

// AddMaterial attaches a material to a course. An unknown course is
// auth.ErrNotFound.
func (s *Service) AddMaterial(ctx context.Context, actor *auth.Principal, courseID string, req validation.MaterialRequest) (*Material, error) {
	ok, err := s.store.CourseExists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auth.ErrNotFound
	}

	now := s.stamp()
	m := &Material{
		ID:           uuid.NewString(),
		CourseID:     courseID,
		Title:        req.Title,
		URL:          req.URL,
		MimeType:     req.MimeType,
		UploadedByID: actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.FileSize != nil {
		m.FileSize = *req.FileSize
	}
	if err := s.store.CreateMaterial(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMaterials returns the materials of one course
func (s *Service) ListMaterials(ctx context.Context, courseID string) ([]*Material, error) {
	return s.store.ListMaterials(ctx, courseID)
}

// PostAnnouncement publishes an announcement
func (s *Service) PostAnnouncement(ctx context.Context, actor *auth.Principal, req validation.AnnouncementRequest) (*Announcement, error) {
	now := s.stamp()
	a := &Announcement{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Body:       req.Body,
		PostedByID: actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateAnnouncement(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAnnouncements returns every announcement
func (s *Service) ListAnnouncements(ctx context.Context) ([]*Announcement, error) {
	return s.store.ListAnnouncements(ctx)
}

// RecordAttendance stores a batch of marks taken by actor
func (s *Service) RecordAttendance(ctx context.Context, actor *auth.Principal, reqs []validation.AttendanceRequest) (int64, error) {
	now := s.stamp()
	marks := make([]*Attendance, 0, len(reqs))
	for _, req := range reqs {
		date, _ := validation.ParseDate(req.Date)
		marks = append(marks, &Attendance{
			ID:         uuid.NewString(),
			StudentID:  req.StudentID,
			CourseID:   req.CourseID,
			Status:     req.Status,
			Date:       date.UTC(),
			MarkedByID: actor.ID,
			CreatedAt:  now,
		})
	}
	return s.batch(s.store.CreateAttendance(ctx, marks))
}

// Attendance lists marks matching filter
func (s *Service) Attendance(ctx context.Context, filter Filter) ([]*Attendance, error) {
	return s.store.ListAttendance(ctx, filter)
}

// Enroll stores a batch of enrollments
func (s *Service) Enroll(ctx context.Context, reqs []validation.EnrollmentRequest) (int64, error) {
	now := s.stamp()
	rows := make([]*Enrollment, 0, len(reqs))
	for _, req := range reqs {
		rows = append(rows, &Enrollment{
			ID:         uuid.NewString(),
			StudentID:  req.StudentID,
			CourseID:   req.CourseID,
			EnrolledAt: now,
		})
	}
	return s.batch(s.store.CreateEnrollments(ctx, rows))
}

// Enrollments lists enrollments matching filter
func (s *Service) Enrollments(ctx context.Context, filter Filter) ([]*Enrollment, error) {
	return s.store.ListEnrollments(ctx, filter)
}

// DeclareResults stores a batch of results declared by actor
func (s *Service) DeclareResults(ctx context.Context, actor *auth.Principal, reqs []validation.ResultRequest) (int64, error) {
	now := s.stamp()
	rows := make([]*Result, 0, len(reqs))
	for _, req := range reqs {
		r := &Result{
			ID:           uuid.NewString(),
			StudentID:    req.StudentID,
			CourseID:     req.CourseID,
			Grade:        req.Grade,
			ExamType:     req.ExamType,
			DeclaredByID: actor.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.NumericGrade != nil {
			r.NumericGrade = *req.NumericGrade
		}
		if req.MaxPoints != nil {
			r.MaxPoints = *req.MaxPoints
		}
		rows = append(rows, r)
	}
	return s.batch(s.store.CreateResults(ctx, rows))
}

// Results lists results matching filter
func (s *Service) Results(ctx context.Context, filter Filter) ([]*Result, error) {
	return s.store.ListResults(ctx, filter)
}

// CreateEvent schedules an event. The start must lie in the future.
func (s *Service) CreateEvent(ctx context.Context, actor *auth.Principal, req validation.EventRequest) (*Event, error) {
	start, okStart := validation.ParseDate(req.StartDate)
	end, okEnd := validation.ParseDate(req.EndDate)
	if !okStart || !okEnd {
		return nil, validation.NewFieldError("startDate", "isodate", "Invalid date format")
	}
	now := s.stamp()
	if start.Before(now) {
		return nil, validation.NewFieldError("startDate", "future", "Start date must be in the future")
	}

	roles := make([]auth.Role, 0, len(req.EventForRole))
	for _, name := range req.EventForRole {
		role, err := auth.ParseRole(name)
		if err != nil {
			return nil, auth.ErrInvalidRole
		}
		roles = append(roles, role)
	}

	e := &Event{
		ID:           uuid.NewString(),
		Title:        req.Title,
		StartDate:    start.UTC(),
		EndDate:      end.UTC(),
		EventForRole: roles,
		OrganizerID:  actor.ID,
		CreatedAt:    now,
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// EventsFor lists events whose audience includes role
func (s *Service) EventsFor(ctx context.Context, role auth.Role) ([]*Event, error) {
	return s.store.ListEventsForRole(ctx, role)
}

func (s *Service) batch(n int64, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNothingCreated
	}
	return n, nil
}
