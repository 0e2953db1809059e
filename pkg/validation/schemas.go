package validation

import (
	"github.com/go-playground/validator/v10"
)

// RegisterRequest is the self-registration body
type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	FullName    string  `json:"fullName" validate:"required,min=3"`
	Role        string  `json:"role" validate:"required,role"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,min=10"`
}

// LoginRequest is the login body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangeRoleRequest is the admin role change body
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// CourseRequest creates a course
type CourseRequest struct {
	Code        string `json:"code" validate:"required,min=3"`
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description" validate:"required,min=3"`
	Credits     *int   `json:"credits,omitempty" validate:"omitempty,min=0"`
}

// AnnouncementRequest creates an announcement
type AnnouncementRequest struct {
	Title string `json:"title" validate:"required,min=3"`
	Body  string `json:"body" validate:"required,min=3"`
}

// AttendanceRequest is one attendance mark
type AttendanceRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=Present Absent Late Excused"`
	Date      string `json:"date" validate:"required,isodate"`
}

// EnrollmentRequest enrolls one student in one course
type EnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
}

// Grades accepted by ResultRequest
var Grades = []string{
	"A_PLUS", "A", "A_MINUS",
	"B_PLUS", "B", "B_MINUS",
	"C_PLUS", "C", "C_MINUS",
	"D_PLUS", "D", "D_MINUS",
	"F", "INCOMPLETE", "PASS", "FAIL",
}

// ResultRequest is one graded result
type ResultRequest struct {
	StudentID    string   `json:"studentId" validate:"required"`
	CourseID     string   `json:"courseId" validate:"required"`
	Grade        string   `json:"grade" validate:"required,oneof=A_PLUS A A_MINUS B_PLUS B B_MINUS C_PLUS C C_MINUS D_PLUS D D_MINUS F INCOMPLETE PASS FAIL"`
	NumericGrade *float64 `json:"numericGrade" validate:"required,min=0"`
	MaxPoints    *float64 `json:"maxPoints" validate:"required,min=0"`
	ExamType     string   `json:"examType" validate:"required"`
}

// EventRequest creates a campus event
type EventRequest struct {
	Title        string   `json:"title" validate:"required"`
	Description  *string  `json:"description" validate:"required"`
	StartDate    string   `json:"startDate" validate:"required,isodate"`
	EndDate      string   `json:"endDate" validate:"required,isodate"`
	Location     *string  `json:"location" validate:"required"`
	EventForRole []string `json:"eventForRole" validate:"required,dive,role"`
}

// MaterialRequest attaches a course material
type MaterialRequest struct {
	Title    string  `json:"title" validate:"required,min=3"`
	URL      string  `json:"url" validate:"required,url"`
	FileSize *int64  `json:"fileSize" validate:"required,min=10"`
	MimeType *string `json:"mimeType,omitempty" validate:"omitempty,oneof=application/pdf image/png image/jpeg text/plain"`
}

// eventDates rejects events that end before they start
func eventDates(sl validator.StructLevel) {
	ev := sl.Current().Interface().(EventRequest)
	start, okStart := ParseDate(ev.StartDate)
	end, okEnd := ParseDate(ev.EndDate)
	if okStart && okEnd && end.Before(start) {
		sl.ReportError(ev.EndDate, "endDate", "EndDate", "aftereq", "startDate")
	}
}

// Body schemas, one per write route
var (
	RegisterSchema     = Object[RegisterRequest]("register")
	LoginSchema        = Object[LoginRequest]("login")
	ChangeRoleSchema   = Object[ChangeRoleRequest]("change-role")
	CourseSchema       = Object[CourseRequest]("course")
	AnnouncementSchema = Object[AnnouncementRequest]("announcement")
	AttendanceSchema   = List[AttendanceRequest]("attendance")
	EnrollmentSchema   = List[EnrollmentRequest]("enrollment")
	ResultSchema       = List[ResultRequest]("result")
	EventSchema        = Object[EventRequest]("event")
	MaterialSchema     = Object[MaterialRequest]("material")
)
