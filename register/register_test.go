package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore()

	assert.Equal(t, float64(Sentinel), s.Get(SessionTool))

	s.Set(SessionTool, 90)
	assert.Equal(t, 90.0, s.Get(SessionTool))

	s.Set(SessionTool, 0)
	assert.Equal(t, 0.0, s.Get(SessionTool))
}

func TestGetBool(t *testing.T) {
	s := NewMemStore()

	// unset reads as false, not as the sentinel's nonzero value
	assert.False(t, GetBool(s, BootAuto))

	SetBool(s, BootAuto, true)
	assert.True(t, GetBool(s, BootAuto))

	SetBool(s, BootAuto, false)
	assert.False(t, GetBool(s, BootAuto))
}
