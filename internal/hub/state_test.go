package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_CanTransition(t *testing.T) {
	all := []State{StateConnecting, StateOpen, StateClosed, StateErrored}
	allowed := map[State][]State{
		StateConnecting: {StateOpen, StateClosed, StateErrored},
		StateOpen:       {StateClosed, StateErrored},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateConnecting.Terminal())
	assert.False(t, StateOpen.Terminal())
	assert.True(t, StateClosed.Terminal())
	assert.True(t, StateErrored.Terminal())
	assert.Equal(t, "unknown", State(42).String())
}
