package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker(t *testing.T) {

	t.Run("emits on transition only", func(t *testing.T) {
		tr := NewTracker(true)
		tr.Set(true)
		select {
		case <-tr.Changes():
			t.Fatalf("No transition should be reported")
		default:
		}

		tr.Set(false)
		assert.False(t, tr.Foreground())
		assert.False(t, <-tr.Changes())
	})

	t.Run("keeps latest state", func(t *testing.T) {
		tr := NewTracker(true)
		tr.Set(false)
		tr.Set(true)
		assert.True(t, <-tr.Changes())
		select {
		case <-tr.Changes():
			t.Fatalf("Only the latest state should be kept")
		default:
		}
	})

	t.Run("always foreground", func(t *testing.T) {
		assert.True(t, AlwaysForeground().Foreground())
	})
}
