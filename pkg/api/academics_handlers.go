package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/middleware"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// batchResponse reports how many rows a bulk create wrote
type batchResponse struct {
	Count int64 `json:"count"`
}

// writeList wraps a listing in the envelope. An empty listing is a 404, as
// clients of this API expect.
func writeList[T any](s *Server, w http.ResponseWriter, r *http.Request, items []T, err error, entity string) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(items) == 0 {
		s.writeError(w, r, httputil.NotFound("No "+strings.ToLower(entity)+" found"))
		return
	}
	httputil.WriteSuccess(w, entity+" retrieved successfully", items)
}

// writeBatch maps the bulk create outcomes
func (s *Server) writeBatch(w http.ResponseWriter, r *http.Request, n int64, err error, entity, created string) {
	switch {
	case errors.Is(err, academics.ErrNothingCreated):
		err = httputil.BadRequest("No " + entity + " were created")
	case errors.Is(err, auth.ErrNotFound):
		err = httputil.NotFound("Student or course not found")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, created, batchResponse{Count: n})
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, key, message string) (string, bool) {
	v, err := httputil.ParsePathString(r, key)
	if err != nil {
		s.writeError(w, r, httputil.BadRequest(message))
		return "", false
	}
	return v, true
}

func actor(r *http.Request) *auth.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}

// listAnnouncements handles GET /announcements
func (s *Server) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	items, err := s.academics.ListAnnouncements(r.Context())
	writeList(s, w, r, items, err, "Announcements")
}

// createAnnouncement handles POST /announcements
func (s *Server) createAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req validation.AnnouncementRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.academics.PostAnnouncement(r.Context(), actor(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Announcement created successfully", a)
}

// recordAttendance handles POST /attendance
func (s *Server) recordAttendance(w http.ResponseWriter, r *http.Request) {
	var reqs []validation.AttendanceRequest
	if !s.decode(w, r, &reqs) {
		return
	}
	n, err := s.academics.RecordAttendance(r.Context(), actor(r), reqs)
	s.writeBatch(w, r, n, err, "attendance records", "Attendance recorded successfully")
}

// studentAttendance handles GET /attendance/students/{studentId}
func (s *Server) studentAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "studentId", "Student ID is required")
	if !ok {
		return
	}
	items, err := s.academics.Attendance(r.Context(), academics.Filter{StudentID: id})
	writeList(s, w, r, items, err, "Attendance")
}

// courseAttendance handles GET /attendance/courses/{courseId}
func (s *Server) courseAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "courseId", "Course ID is required")
	if !ok {
		return
	}
	items, err := s.academics.Attendance(r.Context(), academics.Filter{CourseID: id})
	writeList(s, w, r, items, err, "Attendance")
}

// listCourses handles GET /courses
func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	items, err := s.academics.ListCourses(r.Context())
	writeList(s, w, r, items, err, "Courses")
}

// createCourse handles POST /courses
func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	var req validation.CourseRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.academics.CreateCourse(r.Context(), actor(r), req)
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			err = httputil.Conflict("Course already exists")
		}
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Course created successfully", c)
}

// listMaterials handles GET /courses/{courseId}/materials
func (s *Server) listMaterials(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "courseId", "Course ID is required")
	if !ok {
		return
	}
	items, err := s.academics.ListMaterials(r.Context(), id)
	writeList(s, w, r, items, err, "Materials")
}

// addMaterial handles POST /courses/{courseId}/materials
func (s *Server) addMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "courseId", "Course ID is required")
	if !ok {
		return
	}
	var req validation.MaterialRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.academics.AddMaterial(r.Context(), actor(r), id, req)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			err = httputil.NotFound("Course not found")
		}
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Material created successfully", m)
}

// listEnrollments handles GET /enrollments
func (s *Server) listEnrollments(w http.ResponseWriter, r *http.Request) {
	items, err := s.academics.Enrollments(r.Context(), academics.Filter{})
	writeList(s, w, r, items, err, "Enrollments")
}

// enroll handles POST /enrollments
func (s *Server) enroll(w http.ResponseWriter, r *http.Request) {
	var reqs []validation.EnrollmentRequest
	if !s.decode(w, r, &reqs) {
		return
	}
	n, err := s.academics.Enroll(r.Context(), reqs)
	s.writeBatch(w, r, n, err, "enrollments", "Enrollments created successfully")
}

// studentEnrollments handles GET /enrollments/students/{studentId}
func (s *Server) studentEnrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "studentId", "Student ID is required")
	if !ok {
		return
	}
	items, err := s.academics.Enrollments(r.Context(), academics.Filter{StudentID: id})
	writeList(s, w, r, items, err, "Enrollments")
}

// courseEnrollments handles GET /enrollments/courses/{courseId}
func (s *Server) courseEnrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "courseId", "Course ID is required")
	if !ok {
		return
	}
	items, err := s.academics.Enrollments(r.Context(), academics.Filter{CourseID: id})
	writeList(s, w, r, items, err, "Enrollments")
}

// listEvents handles GET /events. Callers only see events addressed to their
// role.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	items, err := s.academics.EventsFor(r.Context(), actor(r).Role)
	writeList(s, w, r, items, err, "Events")
}

// createEvent handles POST /events
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req validation.EventRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.academics.CreateEvent(r.Context(), actor(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Event created successfully", e)
}

// declareResults handles POST /results
func (s *Server) declareResults(w http.ResponseWriter, r *http.Request) {
	var reqs []validation.ResultRequest
	if !s.decode(w, r, &reqs) {
		return
	}
	n, err := s.academics.DeclareResults(r.Context(), actor(r), reqs)
	s.writeBatch(w, r, n, err, "results", "Results declared successfully")
}

// studentResults handles GET /results/students/{studentId}
func (s *Server) studentResults(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "studentId", "Student ID is required")
	if !ok {
		return
	}
	items, err := s.academics.Results(r.Context(), academics.Filter{StudentID: id})
	writeList(s, w, r, items, err, "Results")
}
