package template

import (
	"fmt"
	"testing"
	"time"

	"github.com/credentio/bulkissue/internal/pkg/persistence"
	"github.com/credentio/bulkissue/internal/pkg/test"
	"github.com/credentio/bulkissue/internal/pkg/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Fail(t *testing.T) {
	_, err := NewProvider(nil)
	assert.NotNil(t, err)
}

func TestGet(t *testing.T) {
	dbMock := &mocks.DB{}
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(&persistence.Template{ID: "t1",
		Attributes: []string{"name", "date"}}, nil)
	p, err := NewProvider(dbMock)
	require.Nil(t, err)
	res, err := p.Get(test.Ctx(t), "t1")
	require.Nil(t, err)
	assert.Equal(t, []string{"name", "date"}, res.Attributes)
}

func TestGet_Cached(t *testing.T) {
	dbMock := &mocks.DB{}
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(&persistence.Template{ID: "t1"}, nil)
	p, err := NewProvider(dbMock)
	require.Nil(t, err)
	for i := 0; i < 5; i++ {
		_, err := p.Get(test.Ctx(t), "t1")
		require.Nil(t, err)
	}
	assert.Equal(t, 1, len(dbMock.Calls))
}

func TestGet_Expired(t *testing.T) {
	dbMock := &mocks.DB{}
	dbMock.On("LoadTemplate", mock.Anything, "t1").Return(&persistence.Template{ID: "t1"}, nil)
	p, err := NewProvider(dbMock)
	require.Nil(t, err)
	p.ttl = -time.Second
	for i := 0; i < 3; i++ {
		_, err := p.Get(test.Ctx(t), "t1")
		require.Nil(t, err)
	}
	assert.Equal(t, 3, len(dbMock.Calls))
}

func TestGet_Fail(t *testing.T) {
	dbMock := &mocks.DB{}
	dbMock.On("LoadTemplate", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("olia err"))
	p, err := NewProvider(dbMock)
	require.Nil(t, err)
	_, err = p.Get(test.Ctx(t), "t1")
	assert.NotNil(t, err)
}
