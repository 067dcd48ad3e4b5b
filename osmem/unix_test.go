//go:build !windows

package osmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnixPageSource_ObtainAndRelease(t *testing.T) {
	s := NewUnixPageSource()
	base, err := s.Obtain(1)
	assert.NoError(t, err)
	assert.NotZero(t, base)

	assert.NoError(t, s.Release(base, 1))
}

func TestUnixPageSource_DistinctRegions(t *testing.T) {
	s := NewUnixPageSource()
	a, err := s.Obtain(1)
	assert.NoError(t, err)
	b, err := s.Obtain(1)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.NoError(t, s.Release(a, 1))
	assert.NoError(t, s.Release(b, 1))
}
