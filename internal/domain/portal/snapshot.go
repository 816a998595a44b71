package portal

// GradeItem is one graded element within a course.
type GradeItem struct {
	QuizAssignment string `json:"quiz_assignment"`
	ElementName    string `json:"element_name"`
	Grade          string `json:"grade"`
}

// DisplayName returns the human-readable name of the graded element.
// Some portal rows carry only an element name, others only a quiz name.
func (g GradeItem) DisplayName() string {
	if g.QuizAssignment != "" {
		return g.QuizAssignment
	}
	return g.ElementName
}

// GradesSnapshot maps a course name to its graded elements in portal order.
type GradesSnapshot map[string][]GradeItem

// AttendanceSession is one recorded session for a course.
type AttendanceSession struct {
	Session string `json:"session"`
	Status  string `json:"status"`
}

// AttendanceSnapshot maps a course name to its recorded sessions.
type AttendanceSnapshot map[string][]AttendanceSession

// Announcement is one portal-wide announcement row.
type Announcement struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
	Date    string `json:"date,omitempty"`
}

// PortalData is the combined student-home snapshot: profile fields,
// per-course grade detail and the global announcement feed.
type PortalData struct {
	StudentInfo    map[string]string `json:"student_info"`
	DetailedGrades GradesSnapshot    `json:"detailed_grades"`
	Announcements  []Announcement    `json:"notifications"`
}

// CourseRef points at one course on the learning platform.
type CourseRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CourseContent is the cached per-course content bundle: the course
// announcement entry (if any) followed by the downloadable items.
type CourseContent struct {
	Announcement string        `json:"course_announcement,omitempty"`
	Items        []ContentItem `json:"items"`
}

// ContentItem is one downloadable element inside a course week.
type ContentItem struct {
	Week        string `json:"week,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"download_url,omitempty"`
}
