package streambox

// Status represents the lifecycle state of a box record.
type Status string

const (
	// StatusPending indicates the record is waiting to be claimed and processed.
	StatusPending Status = "PENDING"
	// StatusFinished indicates the record was processed. It is terminal.
	StatusFinished Status = "FINISHED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusFinished
}

func (s Status) String() string {
	return string(s)
}
