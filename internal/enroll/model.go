package enroll

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Enrollment grants a user access to a course. At most one exists per
// (user, course) no matter how many orders reference the course.
type Enrollment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CourseID    string     `json:"course_id"`
	OrderID     string     `json:"order_id,omitempty"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CourseTitle string     `json:"course_title,omitempty"`
}

type Stats struct {
	TotalEnrollments  int     `json:"totalEnrollments"`
	CompletedCourses  int     `json:"completedCourses"`
	InProgressCourses int     `json:"inProgressCourses"`
	AverageProgress   float64 `json:"averageProgress"`
}
