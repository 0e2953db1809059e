package academics

import (
	"time"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// Attendance statuses
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
	StatusLate    = "Late"
	StatusExcused = "Excused"
)

// Course is a catalogue entry
type Course struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Credits     *int        `json:"credits,omitempty"`
	CreatedByID string      `json:"createdById"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Materials   []*Material `json:"materials,omitempty"`
}

// Material is a link attached to a course
type Material struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	FileSize     int64     `json:"fileSize"`
	MimeType     *string   `json:"mimeType,omitempty"`
	UploadedByID string    `json:"uploadedById"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Announcement is a campus-wide notice
type Announcement struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	PostedByID string    `json:"postedById"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Attendance is one student's mark for one course on one day
type Attendance struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	CourseID   string    `json:"courseId"`
	Status     string    `json:"status"`
	Date       time.Time `json:"date"`
	MarkedByID string    `json:"markedById"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Enrollment links a student to a course
type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"studentId"`
	CourseID   string    `json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// Result is a declared grade for one exam
type Result struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	CourseID     string    `json:"courseId"`
	Grade        string    `json:"grade"`
	NumericGrade float64   `json:"numericGrade"`
	MaxPoints    float64   `json:"maxPoints"`
	ExamType     string    `json:"examType"`
	DeclaredByID string    `json:"declaredById"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Event is a dated campus event visible to a set of roles
type Event struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	StartDate    time.Time   `json:"startDate"`
	EndDate      time.Time   `json:"endDate"`
	Location     string      `json:"location"`
	EventForRole []auth.Role `json:"eventForRole"`
	OrganizerID  string      `json:"organizerId"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// VisibleTo reports whether role is in the event audience
func (e *Event) VisibleTo(role auth.Role) bool {
	for _, r := range e.EventForRole {
		if r == role {
			return true
		}
	}
	return false
}
