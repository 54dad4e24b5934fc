package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var knownStatus = map[Status]bool{
	StatusPending:   true,
	StatusPreparing: true,
	StatusReady:     true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ParseStatus validates a status read back from storage.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !knownStatus[st] {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}
