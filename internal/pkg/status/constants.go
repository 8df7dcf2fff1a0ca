package status

// Status represents bulk issuance submission state
type Status int

const (
	// Started - rows are stored and dispatch is running
	Started Status = iota + 1
	// Completed - every row issued
	Completed
	// PartiallyCompleted - finished, but some rows remain errored
	PartiallyCompleted
	// Interrupted - dispatch failed before all rows were enqueued
	Interrupted
)

var (
	statusName = map[Status]string{Started: "STARTED", Completed: "COMPLETED",
		PartiallyCompleted: "PARTIALLY_COMPLETED", Interrupted: "INTERRUPTED"}
	nameStatus = map[string]Status{"STARTED": Started, "COMPLETED": Completed,
		"PARTIALLY_COMPLETED": PartiallyCompleted, "INTERRUPTED": Interrupted}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Final returns terminal status for a finished run with the given error-row count
func Final(errRows int64) Status {
	if errRows > 0 {
		return PartiallyCompleted
	}
	return Completed
}
