package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisight/backend/internal/domain/portal"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestGradesDetector_NewGrade(t *testing.T) {
	d := NewGradesDetector(nil)

	oldSnap := portal.GradesSnapshot{
		"Math 101": {{QuizAssignment: "Quiz 1", Grade: "8/10"}},
	}
	newSnap := portal.GradesSnapshot{
		"Math 101": {
			{QuizAssignment: "Quiz 1", Grade: "8/10"},
			{QuizAssignment: "Quiz 2", Grade: "9/10"},
		},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Equal(t, portal.NotificationGrade, got[0].Type)
	assert.Equal(t, "New grade for Math 101: Quiz 2: 9/10", got[0].Description)
}

func TestGradesDetector_UpdatedGrade(t *testing.T) {
	d := NewGradesDetector(nil)

	oldSnap := portal.GradesSnapshot{
		"Math 101": {{ElementName: "Midterm", Grade: "22/30"}},
	}
	newSnap := portal.GradesSnapshot{
		"Math 101": {{ElementName: "Midterm", Grade: "25/30"}},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Equal(t, "Updated grade for Math 101: Midterm: 25/30", got[0].Description)
}

func TestGradesDetector_PlaceholderIsSilent(t *testing.T) {
	d := NewGradesDetector(nil)

	oldSnap := portal.GradesSnapshot{
		"Math 101": {{QuizAssignment: "Quiz 1", Grade: "8/10"}},
	}
	newSnap := portal.GradesSnapshot{
		"Math 101": {
			{QuizAssignment: "Quiz 1", Grade: "8/10"},
			{QuizAssignment: "Quiz 2", Grade: "N/A"},
			{QuizAssignment: "Quiz 3", Grade: "-"},
			{QuizAssignment: "Quiz 4", Grade: "Undetermined"},
		},
	}

	assert.Empty(t, d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap)))
}

func TestGradesDetector_ClearedGrade(t *testing.T) {
	d := NewGradesDetector(nil)

	oldSnap := portal.GradesSnapshot{
		"Math 101": {{ElementName: "Midterm", Grade: "22/30"}},
	}
	newSnap := portal.GradesSnapshot{
		"Math 101": {{ElementName: "Midterm", Grade: "-"}},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Equal(t, "Grade cleared for Math 101: Midterm", got[0].Description)
}

func TestGradesDetector_PlaceholderStaysClearedSilently(t *testing.T) {
	d := NewGradesDetector(nil)

	oldSnap := portal.GradesSnapshot{
		"Math 101": {{ElementName: "Midterm", Grade: "-"}},
	}
	newSnap := portal.GradesSnapshot{
		"Math 101": {{ElementName: "Midterm", Grade: "n/a"}},
	}

	assert.Empty(t, d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap)))
}

func TestGradesDetector_CosmeticRerenderIsSilent(t *testing.T) {
	d := NewGradesDetector(nil)

	oldSnap := portal.GradesSnapshot{
		"Math 101": {{QuizAssignment: "Quiz 1", Grade: "8 / 10"}},
	}
	newSnap := portal.GradesSnapshot{
		"Math 101": {{QuizAssignment: "Quiz  1", Grade: "8 /  10"}},
	}

	assert.Empty(t, d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap)))
}

func TestGradesDetector_NoPreviousSnapshot(t *testing.T) {
	d := NewGradesDetector(nil)

	newSnap := portal.GradesSnapshot{
		"Math 101": {{QuizAssignment: "Quiz 1", Grade: "8/10"}},
	}

	assert.Nil(t, d.Detect(nil, mustJSON(t, newSnap)),
		"first snapshot must not announce the whole history")
}

func TestGradesDetector_UndecodableSnapshot(t *testing.T) {
	d := NewGradesDetector(nil)
	assert.Nil(t, d.Detect([]byte("{broken"), []byte("{}")))
	assert.Nil(t, d.Detect([]byte("{}"), []byte("{broken")))
}

func TestAttendanceDetector(t *testing.T) {
	d := NewAttendanceDetector(nil)

	oldSnap := portal.AttendanceSnapshot{
		"Math 101": {{Session: "Week 1", Status: "Present"}},
	}
	newSnap := portal.AttendanceSnapshot{
		"Math 101": {
			{Session: "Week 1", Status: "Present"},
			{Session: "Week 2", Status: "Absent"},
		},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Equal(t, portal.NotificationAttendance, got[0].Type)
	assert.Equal(t, "Attendance for Math 101: Week 2: Absent", got[0].Description)
}

func TestAttendanceDetector_StatusFlip(t *testing.T) {
	d := NewAttendanceDetector(nil)

	oldSnap := portal.AttendanceSnapshot{
		"Math 101": {{Session: "Week 1", Status: "Absent"}},
	}
	newSnap := portal.AttendanceSnapshot{
		"Math 101": {{Session: "Week 1", Status: "Excused"}},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Description, "Excused")
}

func TestPortalDataDetector_StudentInfoChange(t *testing.T) {
	d := NewPortalDataDetector(nil)

	oldSnap := portal.PortalData{
		StudentInfo: map[string]string{"advisor": "Dr. Smith", "standing": "Good"},
	}
	newSnap := portal.PortalData{
		StudentInfo: map[string]string{"advisor": "Dr. Jones", "standing": "Good"},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Equal(t, portal.NotificationPortal, got[0].Type)
	assert.Equal(t, "Student info updated: advisor: Dr. Jones", got[0].Description)
}

func TestPortalDataDetector(t *testing.T) {
	d := NewPortalDataDetector(nil)

	oldSnap := portal.PortalData{
		Announcements: []portal.Announcement{{ID: "1", Title: "Welcome"}},
	}
	newSnap := portal.PortalData{
		Announcements: []portal.Announcement{
			{ID: "1", Title: "Welcome"},
			{ID: "2", Title: "Exam schedule published"},
		},
	}

	got := d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap))
	require.Len(t, got, 1)
	assert.Equal(t, portal.NotificationPortal, got[0].Type)
	assert.Equal(t, "New announcement: Exam schedule published", got[0].Description)
}

func TestPortalDataDetector_FallsBackToTitleIdentity(t *testing.T) {
	d := NewPortalDataDetector(nil)

	oldSnap := portal.PortalData{
		Announcements: []portal.Announcement{{Title: "Welcome", Subject: "General"}},
	}
	newSnap := portal.PortalData{
		Announcements: []portal.Announcement{{Title: "Welcome", Subject: "General"}},
	}

	assert.Empty(t, d.Detect(mustJSON(t, oldSnap), mustJSON(t, newSnap)))
}
