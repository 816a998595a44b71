package portal

import "encoding/json"

// Notification is one queued user-facing change notice. On the wire it
// is a two-element array [type, description] so existing consumers of
// the queue keep working.
type Notification struct {
	Type        string
	Description string
}

// MarshalJSON encodes the notification as a [type, description] pair.
func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{n.Type, n.Description})
}

// UnmarshalJSON decodes a [type, description] pair.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	n.Type = pair[0]
	n.Description = pair[1]
	return nil
}

// Well-known notification types.
const (
	NotificationGrade      = "grade"
	NotificationAttendance = "attendance"
	NotificationPortal     = "portal"
)
