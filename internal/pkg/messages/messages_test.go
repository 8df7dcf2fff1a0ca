package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessageFrom(t *testing.T) {
	assert.Equal(t, &IssueMessage{JobID: "jID", TotalJobs: 10},
		NewMessageFrom(&IssueMessage{JobID: "jID", TotalJobs: 10}))
}

func TestNewMessageFrom_Copy(t *testing.T) {
	m := &IssueMessage{JobID: "jID"}
	c := NewMessageFrom(m)
	c.JobID = "other"
	assert.Equal(t, "jID", m.JobID)
}
