package portal

// Category identifies one kind of portal data tracked for a user.
// The category name doubles as the cache key prefix.
type Category string

const (
	CategoryPortalData Category = "portal_data"
	CategorySchedule   Category = "schedule"
	CategoryCourses    Category = "courses"
	CategoryGrades     Category = "grades"
	CategoryAttendance Category = "attendance"
	CategoryExamSeats  Category = "exam_seats"
	CategoryContent    Category = "content"
)

// AllCategories lists every category in refresh order. Content comes
// first because its course fan-out benefits most from the cross-user
// download dedupe built up during a run.
func AllCategories() []Category {
	return []Category{
		CategoryContent,
		CategoryPortalData,
		CategorySchedule,
		CategoryCourses,
		CategoryGrades,
		CategoryAttendance,
		CategoryExamSeats,
	}
}

// ValidCategory reports whether name is a known category.
func ValidCategory(name string) bool {
	for _, c := range AllCategories() {
		if string(c) == name {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
