package models

// StatusID identifies a goods-return complaint status.
type StatusID int

const (
	StatusCompleted StatusID = 0
	StatusPending   StatusID = 1
	StatusRejected  StatusID = 2
)

const unknownStatusName = "Unknown"

var statusNames = map[StatusID]string{
	StatusCompleted: "Completed",
	StatusPending:   "Pending",
	StatusRejected:  "Rejected",
}

// StatusName returns the human-readable name of id, or "Unknown".
func StatusName(id StatusID) string {
	if name, ok := statusNames[id]; ok {
		return name
	}
	return unknownStatusName
}
