package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_defaultV(t *testing.T) {
	assert.Equal(t, 100, defaultV(0, 100))
	assert.Equal(t, 10, defaultV(10, 100))
	assert.Equal(t, int64(50), defaultV(int64(0), int64(50)))
	assert.Equal(t, time.Minute, defaultV(time.Duration(0), time.Minute))
	assert.Equal(t, time.Second, defaultV(time.Second, time.Minute))
}
