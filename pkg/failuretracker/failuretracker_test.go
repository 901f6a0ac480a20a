package failuretracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordCompletionIgnoresNonAppFailures(t *testing.T) {
	tr := New(time.Minute, 3)
	tr.RecordCompletion(false)
	tr.RecordCompletion(false)
	assert.Equal(t, 0, tr.NumFailedExecutors())
	assert.False(t, tr.IsFatal())
}

func TestIsFatalCrossesThreshold(t *testing.T) {
	tr := New(time.Minute, 3)
	tr.RecordCompletion(true)
	tr.RecordCompletion(true)
	assert.False(t, tr.IsFatal())
	tr.RecordCompletion(true)
	assert.True(t, tr.IsFatal())
}

func TestFailuresExpireOutsideWindow(t *testing.T) {
	tr := New(10*time.Millisecond, 1)
	fake := time.Now()
	tr.nowFn = func() time.Time { return fake }

	tr.RecordCompletion(true)
	assert.Equal(t, 1, tr.NumFailedExecutors())

	fake = fake.Add(20 * time.Millisecond)
	assert.Equal(t, 0, tr.NumFailedExecutors())
	assert.False(t, tr.IsFatal())
}

func TestThresholdZeroNeverFatal(t *testing.T) {
	tr := New(time.Minute, 0)
	for i := 0; i < 100; i++ {
		tr.RecordCompletion(true)
	}
	assert.False(t, tr.IsFatal())
}
