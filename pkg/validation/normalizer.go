package validation

import (
	"strings"
	"time"
)

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeDate rewrites a parseable date as RFC3339 UTC and leaves anything
// else for the isodate rule to reject
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if t, ok := ParseDate(s); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return s
}

func (r *RegisterRequest) normalize() {
	r.Email = lowerTrim(r.Email)
	r.FullName = lowerTrim(r.FullName)
	r.Role = strings.TrimSpace(r.Role)
	if r.PhoneNumber != nil {
		phone := strings.TrimSpace(*r.PhoneNumber)
		r.PhoneNumber = &phone
	}
}

func (r *LoginRequest) normalize() {
	r.Email = lowerTrim(r.Email)
}

func (r *ChangeRoleRequest) normalize() {
	r.Role = strings.TrimSpace(r.Role)
}

func (r *CourseRequest) normalize() {
	r.Code = lowerTrim(r.Code)
	r.Name = lowerTrim(r.Name)
	r.Description = lowerTrim(r.Description)
}

func (r *AnnouncementRequest) normalize() {
	r.Title = lowerTrim(r.Title)
	r.Body = lowerTrim(r.Body)
}

func (r *AttendanceRequest) normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.Date = normalizeDate(r.Date)
}

func (r *EnrollmentRequest) normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.CourseID = strings.TrimSpace(r.CourseID)
}

func (r *ResultRequest) normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.ExamType = strings.TrimSpace(r.ExamType)
}

func (r *EventRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.StartDate = normalizeDate(r.StartDate)
	r.EndDate = normalizeDate(r.EndDate)
}

func (r *MaterialRequest) normalize() {
	r.Title = lowerTrim(r.Title)
	r.URL = strings.TrimSpace(r.URL)
}
