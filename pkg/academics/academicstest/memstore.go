// Package academicstest provides an in-memory academics store for tests.
package academicstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/auth"
)

// MemStore is a mutex-guarded academics.Store
type MemStore struct {
	mu            sync.Mutex
	courses       []*academics.Course
	materials     []*academics.Material
	announcements []*academics.Announcement
	attendance    []*academics.Attendance
	enrollments   []*academics.Enrollment
	results       []*academics.Result
	events        []*academics.Event
}

var _ academics.Store = (*MemStore)(nil)

// NewMemStore creates an empty store
func NewMemStore() *MemStore {
	return &MemStore{}
}

// newestFirst sorts by the timestamp returned by at, descending
func newestFirst[T any](items []T, at func(T) time.Time) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	return out
}

func matches(f academics.Filter, studentID, courseID string) bool {
	return (f.StudentID == "" || f.StudentID == studentID) && (f.CourseID == "" || f.CourseID == courseID)
}

func (m *MemStore) CreateCourse(_ context.Context, c *academics.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return auth.ErrConflict
		}
	}
	cp := *c
	m.courses = append(m.courses, &cp)
	return nil
}

func (m *MemStore) ListCourses(_ context.Context) ([]*academics.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*academics.Course, 0, len(m.courses))
	for _, c := range newestFirst(m.courses, func(c *academics.Course) time.Time { return c.CreatedAt }) {
		cp := *c
		cp.Materials = nil
		for _, mat := range m.materials {
			if mat.CourseID == c.ID {
				cp.Materials = append(cp.Materials, mat)
			}
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemStore) CourseExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) CreateMaterial(_ context.Context, mat *academics.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mat
	m.materials = append(m.materials, &cp)
	return nil
}

func (m *MemStore) ListMaterials(_ context.Context, courseID string) ([]*academics.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*academics.Material
	for _, mat := range m.materials {
		if mat.CourseID == courseID {
			out = append(out, mat)
		}
	}
	return newestFirst(out, func(x *academics.Material) time.Time { return x.UpdatedAt }), nil
}

func (m *MemStore) CreateAnnouncement(_ context.Context, a *academics.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.announcements = append(m.announcements, &cp)
	return nil
}

func (m *MemStore) ListAnnouncements(_ context.Context) ([]*academics.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(m.announcements, func(a *academics.Announcement) time.Time { return a.CreatedAt }), nil
}

func (m *MemStore) CreateAttendance(_ context.Context, marks []*academics.Attendance) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, mark := range marks {
		dup := false
		for _, existing := range m.attendance {
			if existing.StudentID == mark.StudentID && existing.CourseID == mark.CourseID && existing.Date.Equal(mark.Date) {
				dup = true
				break
			}
		}
		if !dup {
			cp := *mark
			m.attendance = append(m.attendance, &cp)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListAttendance(_ context.Context, f academics.Filter) ([]*academics.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*academics.Attendance
	for _, a := range m.attendance {
		if matches(f, a.StudentID, a.CourseID) {
			out = append(out, a)
		}
	}
	return newestFirst(out, func(a *academics.Attendance) time.Time { return a.CreatedAt }), nil
}

func (m *MemStore) CreateEnrollments(_ context.Context, rows []*academics.Enrollment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range rows {
		dup := false
		for _, existing := range m.enrollments {
			if existing.StudentID == row.StudentID && existing.CourseID == row.CourseID {
				dup = true
				break
			}
		}
		if !dup {
			cp := *row
			m.enrollments = append(m.enrollments, &cp)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListEnrollments(_ context.Context, f academics.Filter) ([]*academics.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*academics.Enrollment
	for _, e := range m.enrollments {
		if matches(f, e.StudentID, e.CourseID) {
			out = append(out, e)
		}
	}
	return newestFirst(out, func(e *academics.Enrollment) time.Time { return e.EnrolledAt }), nil
}

func (m *MemStore) CreateResults(_ context.Context, rows []*academics.Result) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range rows {
		dup := false
		for _, existing := range m.results {
			if existing.StudentID == row.StudentID && existing.CourseID == row.CourseID && existing.ExamType == row.ExamType {
				dup = true
				break
			}
		}
		if !dup {
			cp := *row
			m.results = append(m.results, &cp)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListResults(_ context.Context, f academics.Filter) ([]*academics.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*academics.Result
	for _, r := range m.results {
		if matches(f, r.StudentID, r.CourseID) {
			out = append(out, r)
		}
	}
	return newestFirst(out, func(r *academics.Result) time.Time { return r.CreatedAt }), nil
}

func (m *MemStore) CreateEvent(_ context.Context, e *academics.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemStore) ListEventsForRole(_ context.Context, role auth.Role) ([]*academics.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*academics.Event
	for _, e := range m.events {
		if e.VisibleTo(role) {
			out = append(out, e)
		}
	}
	return newestFirst(out, func(e *academics.Event) time.Time { return e.CreatedAt }), nil
}
