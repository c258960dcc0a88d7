package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddAndTake(t *testing.T) {
	m := NewManager()
	p := m.Add(7, 42, "Lighting")
	assert.NotEmpty(t, p.Token)
	assert.Equal(t, 1, m.Len())

	got, err := m.Take(p.Token)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), got.EventID)
	assert.Equal(t, uint(42), got.UserID)
	assert.Equal(t, "Lighting", got.Category)
	assert.Equal(t, 0, m.Len())

	// A token can only be taken once
	_, err = m.Take(p.Token)
	assert.Equal(t, ErrNotFound, err)
}

func TestTakeUnknownToken(t *testing.T) {
	m := NewManager()
	_, err := m.Take("no-such-token")
	assert.Equal(t, ErrNotFound, err)
}

func TestExpiredIntentsArePurged(t *testing.T) {
	m := NewManagerWithLifetime(-time.Minute)
	p := m.Add(1, 1, "DJ")

	_, err := m.Take(p.Token)
	assert.Equal(t, ErrNotFound, err)
	assert.Equal(t, 0, m.Len())
}

func TestTokensAreUnique(t *testing.T) {
	m := NewManager()
	a := m.Add(1, 1, "DJ")
	b := m.Add(1, 2, "DJ")
	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, 2, m.Len())
}
