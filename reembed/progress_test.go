package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_ReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "markets", 1000, 100)
	tracker.Start()

	tracker.Increment(50)
	assert.Empty(t, buf.String(), "under the interval")

	tracker.Increment(50)
	assert.Contains(t, buf.String(), "markets: 100/1000 (10.0%)")

	buf.Reset()
	tracker.Increment(150)
	assert.Contains(t, buf.String(), "250/1000")
	assert.Equal(t, 250, tracker.Done())
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "events", 100, 10)
	tracker.Start()
	tracker.Increment(150)

	assert.Contains(t, buf.String(), "100/100")
	assert.Equal(t, 100, tracker.Done())
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "markets", 100, 10)
	tracker.Start()
	tracker.Increment(5)
	time.Sleep(5 * time.Millisecond)
	tracker.Finish()

	out := buf.String()
	assert.Contains(t, out, "100/100 (100.0%)")
	assert.Contains(t, out, "records/s")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))

	// a second Finish is a no-op
	buf.Reset()
	tracker.Finish()
	assert.Empty(t, buf.String())
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "markets", 100, 10)

	tracker.Increment(10)
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "events", 0, 0)
	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0 (0.0%)")
}
