package academics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/academics/academicstest"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

var (
	admin    = &auth.Principal{ID: "admin-1", Email: "admin@x.edu", Role: auth.RoleAdmin}
	faculty  = &auth.Principal{ID: "fac-1", Email: "fac@x.edu", Role: auth.RoleFaculty}
	fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

func setupService(t *testing.T) (*academics.Service, *academicstest.MemStore) {
	t.Helper()
	store := academicstest.NewMemStore()
	return academics.NewService(store, academics.WithClock(func() time.Time { return fixedNow })), store
}

func strPtr(s string) *string { return &s }

func TestService_CourseAndMaterials(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	course, err := svc.CreateCourse(ctx, admin, validation.CourseRequest{Code: "cs101", Name: "intro", Description: "basics"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, course.CreatedByID)
	assert.Equal(t, fixedNow, course.CreatedAt)

	_, err = svc.CreateCourse(ctx, admin, validation.CourseRequest{Code: "cs101", Name: "again", Description: "dup"})
	assert.ErrorIs(t, err, auth.ErrConflict)

	size := int64(2048)
	mat, err := svc.AddMaterial(ctx, faculty, course.ID, validation.MaterialRequest{
		Title: "syllabus", URL: "https://x.edu/s.pdf", FileSize: &size, MimeType: strPtr("application/pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2048), mat.FileSize)
	assert.Equal(t, faculty.ID, mat.UploadedByID)

	_, err = svc.AddMaterial(ctx, faculty, "missing", validation.MaterialRequest{Title: "x", URL: "https://x.edu"})
	assert.ErrorIs(t, err, auth.ErrNotFound)

	courses, err := svc.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Len(t, courses[0].Materials, 1)

	mats, err := svc.ListMaterials(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, mats, 1)
}

func TestService_BatchesSkipDuplicates(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	reqs := []validation.EnrollmentRequest{
		{StudentID: "s-1", CourseID: "c-1"},
		{StudentID: "s-2", CourseID: "c-1"},
	}
	n, err := svc.Enroll(ctx, reqs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.Enroll(ctx, reqs)
	assert.ErrorIs(t, err, academics.ErrNothingCreated)

	rows, err := svc.Enrollments(ctx, academics.Filter{StudentID: "s-2"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c-1", rows[0].CourseID)
}

func TestService_RecordAttendance(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	n, err := svc.RecordAttendance(ctx, faculty, []validation.AttendanceRequest{
		{StudentID: "s-1", CourseID: "c-1", Status: academics.StatusPresent, Date: "2026-04-30T00:00:00Z"},
		{StudentID: "s-1", CourseID: "c-1", Status: academics.StatusLate, Date: "2026-04-30T00:00:00Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "same student, course and day is one mark")

	marks, err := svc.Attendance(ctx, academics.Filter{CourseID: "c-1"})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), marks[0].Date)
	assert.Equal(t, faculty.ID, marks[0].MarkedByID)
}

func TestService_DeclareResults(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	score, maxPoints := 88.5, 100.0

	n, err := svc.DeclareResults(ctx, admin, []validation.ResultRequest{{
		StudentID: "s-1", CourseID: "c-1", Grade: "A", NumericGrade: &score, MaxPoints: &maxPoints, ExamType: "final",
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	results, err := svc.Results(ctx, academics.Filter{StudentID: "s-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 88.5, results[0].NumericGrade, 1e-9)
	assert.Equal(t, admin.ID, results[0].DeclaredByID)
}

func TestService_CreateEvent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := validation.EventRequest{
		Title:        "orientation",
		Description:  strPtr("welcome week"),
		StartDate:    "2026-06-01T09:00:00Z",
		EndDate:      "2026-06-01T17:00:00Z",
		Location:     strPtr("main hall"),
		EventForRole: []string{"Student", "Faculty"},
	}
	ev, err := svc.CreateEvent(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleStudent, auth.RoleFaculty}, ev.EventForRole)

	forStudents, err := svc.EventsFor(ctx, auth.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, forStudents, 1)

	forAdmins, err := svc.EventsFor(ctx, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Empty(t, forAdmins)

	past := req
	past.StartDate = "2026-04-01T09:00:00Z"
	_, err = svc.CreateEvent(ctx, admin, past)
	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "startDate", verr.Fields[0].Field)
}
