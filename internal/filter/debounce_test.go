package filter

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var runs, last atomic.Int32
	for i := range 5 {
		d.Trigger(func() {
			runs.Add(1)
			last.Store(int32(i))
		})
	}
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(4), last.Load())
	assert.False(t, d.Pending())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var runs atomic.Int32
	d.Trigger(func() { runs.Add(1) })
	assert.True(t, d.Stop())
	assert.False(t, d.Stop())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestDebouncer_DefaultDelay(t *testing.T) {
	assert.Equal(t, DefaultDebounce, NewDebouncer(0).Delay())
}
