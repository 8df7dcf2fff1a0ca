package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrIssuance(t *testing.T) {
	inner := fmt.Errorf("olia err")
	err := NewErrIssuance(inner, "detail msg")
	assert.Equal(t, "issuance error: olia err", err.Error())
	assert.True(t, errors.Is(err, inner))
	var ei *ErrIssuance
	require.True(t, errors.As(err, &ei))
	assert.Equal(t, "detail msg", ei.Detail)
}
