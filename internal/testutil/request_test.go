package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialRequestIDs(t *testing.T) {
	gen := NewSequentialRequestIDs("")
	assert.Equal(t, "req-1", gen.Generate())
	assert.Equal(t, "req-2", gen.Generate())

	custom := NewSequentialRequestIDs("scenario")
	assert.Equal(t, "scenario-1", custom.Generate())
}
