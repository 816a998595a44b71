// Package notify turns snapshot differences into user notifications
// and queues them with a hard per-user capacity.
package notify

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/domain/portal"
)

// Detector compares the previous and current raw snapshots of one
// category and emits notifications for meaningful differences.
// oldRaw is nil when no previous snapshot exists; detectors stay
// silent in that case rather than announcing the entire history.
type Detector interface {
	Category() portal.Category
	Detect(oldRaw, newRaw []byte) []portal.Notification
}

// GradesDetector announces new and updated grades.
type GradesDetector struct {
	logger *zap.Logger
}

// NewGradesDetector creates a grades change detector.
func NewGradesDetector(logger *zap.Logger) *GradesDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradesDetector{logger: logger}
}

// Category implements Detector.
func (d *GradesDetector) Category() portal.Category {
	return portal.CategoryGrades
}

// Detect implements Detector. An element absent from the previous
// snapshot is a new grade; a present element whose grade cell changed
// is an update. Placeholder cells never trigger either.
func (d *GradesDetector) Detect(oldRaw, newRaw []byte) []portal.Notification {
	if oldRaw == nil {
		return nil
	}

	var oldSnap, newSnap portal.GradesSnapshot
	if err := json.Unmarshal(oldRaw, &oldSnap); err != nil {
		d.logger.Warn("previous grades snapshot is not decodable, skipping comparison", zap.Error(err))
		return nil
	}
	if err := json.Unmarshal(newRaw, &newSnap); err != nil {
		d.logger.Warn("current grades snapshot is not decodable, skipping comparison", zap.Error(err))
		return nil
	}

	// Index the previous snapshot by (course, element name).
	oldGrades := make(map[string]string)
	for course, items := range oldSnap {
		for _, item := range items {
			oldGrades[gradeKey(course, item.DisplayName())] = foldKey(item.Grade)
		}
	}

	var out []portal.Notification
	for course, items := range newSnap {
		for _, item := range items {
			name := item.DisplayName()
			prev, existed := oldGrades[gradeKey(course, name)]
			if isPlaceholderGrade(item.Grade) {
				// A real grade reverting to a placeholder means the
				// portal withdrew it.
				if existed && !isPlaceholderGrade(prev) {
					out = append(out, portal.Notification{
						Type:        portal.NotificationGrade,
						Description: fmt.Sprintf("Grade cleared for %s: %s", course, normalize(name)),
					})
				}
				continue
			}
			switch {
			case !existed:
				out = append(out, portal.Notification{
					Type:        portal.NotificationGrade,
					Description: fmt.Sprintf("New grade for %s: %s: %s", course, normalize(name), normalize(item.Grade)),
				})
			case prev != foldKey(item.Grade):
				out = append(out, portal.Notification{
					Type:        portal.NotificationGrade,
					Description: fmt.Sprintf("Updated grade for %s: %s: %s", course, normalize(name), normalize(item.Grade)),
				})
			}
		}
	}
	return out
}

func gradeKey(course, name string) string {
	return foldKey(course) + "\x00" + foldKey(name)
}

// AttendanceDetector announces newly recorded or changed sessions.
type AttendanceDetector struct {
	logger *zap.Logger
}

// NewAttendanceDetector creates an attendance change detector.
func NewAttendanceDetector(logger *zap.Logger) *AttendanceDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceDetector{logger: logger}
}

// Category implements Detector.
func (d *AttendanceDetector) Category() portal.Category {
	return portal.CategoryAttendance
}

// Detect implements Detector. Every (course, session, status) triple
// in the current snapshot that the previous one lacks is announced,
// which covers both new sessions and status flips.
func (d *AttendanceDetector) Detect(oldRaw, newRaw []byte) []portal.Notification {
	if oldRaw == nil {
		return nil
	}

	var oldSnap, newSnap portal.AttendanceSnapshot
	if err := json.Unmarshal(oldRaw, &oldSnap); err != nil {
		d.logger.Warn("previous attendance snapshot is not decodable, skipping comparison", zap.Error(err))
		return nil
	}
	if err := json.Unmarshal(newRaw, &newSnap); err != nil {
		d.logger.Warn("current attendance snapshot is not decodable, skipping comparison", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	for course, sessions := range oldSnap {
		for _, s := range sessions {
			seen[attendanceKey(course, s)] = struct{}{}
		}
	}

	var out []portal.Notification
	for course, sessions := range newSnap {
		for _, s := range sessions {
			if _, ok := seen[attendanceKey(course, s)]; ok {
				continue
			}
			out = append(out, portal.Notification{
				Type:        portal.NotificationAttendance,
				Description: fmt.Sprintf("Attendance for %s: %s: %s", course, normalize(s.Session), normalize(s.Status)),
			})
		}
	}
	return out
}

func attendanceKey(course string, s portal.AttendanceSession) string {
	return foldKey(course) + "\x00" + foldKey(s.Session) + "\x00" + foldKey(s.Status)
}

// PortalDataDetector announces portal-wide announcements that were
// not in the previous snapshot.
type PortalDataDetector struct {
	logger *zap.Logger
}

// NewPortalDataDetector creates a portal announcement detector.
func NewPortalDataDetector(logger *zap.Logger) *PortalDataDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalDataDetector{logger: logger}
}

// Category implements Detector.
func (d *PortalDataDetector) Category() portal.Category {
	return portal.CategoryPortalData
}

// Detect implements Detector. Announcements are identified by their
// portal ID when present, otherwise by title and subject.
func (d *PortalDataDetector) Detect(oldRaw, newRaw []byte) []portal.Notification {
	if oldRaw == nil {
		return nil
	}

	var oldSnap, newSnap portal.PortalData
	if err := json.Unmarshal(oldRaw, &oldSnap); err != nil {
		d.logger.Warn("previous portal snapshot is not decodable, skipping comparison", zap.Error(err))
		return nil
	}
	if err := json.Unmarshal(newRaw, &newSnap); err != nil {
		d.logger.Warn("current portal snapshot is not decodable, skipping comparison", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{}, len(oldSnap.Announcements))
	for _, a := range oldSnap.Announcements {
		seen[announcementKey(a)] = struct{}{}
	}

	var out []portal.Notification
	for field, value := range newSnap.StudentInfo {
		if normalize(value) == "" {
			continue
		}
		if foldKey(oldSnap.StudentInfo[field]) != foldKey(value) {
			out = append(out, portal.Notification{
				Type:        portal.NotificationPortal,
				Description: fmt.Sprintf("Student info updated: %s: %s", field, normalize(value)),
			})
		}
	}
	for _, a := range newSnap.Announcements {
		if _, ok := seen[announcementKey(a)]; ok {
			continue
		}
		title := a.Title
		if title == "" {
			title = a.Subject
		}
		out = append(out, portal.Notification{
			Type:        portal.NotificationPortal,
			Description: fmt.Sprintf("New announcement: %s", normalize(title)),
		})
	}
	return out
}

func announcementKey(a portal.Announcement) string {
	if a.ID != "" {
		return "id\x00" + a.ID
	}
	return foldKey(a.Title) + "\x00" + foldKey(a.Subject)
}

// DefaultDetectors returns every built-in detector.
func DefaultDetectors(logger *zap.Logger) []Detector {
	return []Detector{
		NewGradesDetector(logger),
		NewAttendanceDetector(logger),
		NewPortalDataDetector(logger),
	}
}
