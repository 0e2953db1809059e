package academics

import (
	"context"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// Filter selects rows by student and/or course. Empty fields match all.
type Filter struct {
	StudentID string
	CourseID  string
}

// Store persists academic records. Lists are newest first and return an
// empty slice, not an error, when nothing matches. Batch inserts skip rows
// that duplicate an existing record and report how many were written.
// Unique violations surface as auth.ErrConflict and references to missing
// users or courses as auth.ErrNotFound.
type Store interface {
	CreateCourse(ctx context.Context, course *Course) error
	// ListCourses returns every course with its materials
	ListCourses(ctx context.Context) ([]*Course, error)
	CourseExists(ctx context.Context, id string) (bool, error)

	CreateMaterial(ctx context.Context, material *Material) error
	ListMaterials(ctx context.Context, courseID string) ([]*Material, error)

	CreateAnnouncement(ctx context.Context, a *Announcement) error
	ListAnnouncements(ctx context.Context) ([]*Announcement, error)

	CreateAttendance(ctx context.Context, marks []*Attendance) (int64, error)
	ListAttendance(ctx context.Context, filter Filter) ([]*Attendance, error)

	CreateEnrollments(ctx context.Context, enrollments []*Enrollment) (int64, error)
	ListEnrollments(ctx context.Context, filter Filter) ([]*Enrollment, error)

	CreateResults(ctx context.Context, results []*Result) (int64, error)
	ListResults(ctx context.Context, filter Filter) ([]*Result, error)

	CreateEvent(ctx context.Context, event *Event) error
	ListEventsForRole(ctx context.Context, role auth.Role) ([]*Event, error)
}
