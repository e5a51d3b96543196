package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	flaky := errors.New("flaky")

	tests := []struct {
		name      string
		failFirst int
		attempts  int
		wantErr   error
		wantCalls int
	}{
		{name: "first try", failFirst: 0, attempts: 3, wantCalls: 1},
		{name: "eventual success", failFirst: 2, attempts: 5, wantCalls: 3},
		{name: "all attempts fail", failFirst: 10, attempts: 3, wantErr: flaky, wantCalls: 3},
		{name: "zero attempts", failFirst: 10, attempts: 0, wantErr: ErrInvalidMaxAttempts, wantCalls: 0},
		{name: "negative attempts", failFirst: 10, attempts: -1, wantErr: ErrInvalidMaxAttempts, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(context.Background(), tt.attempts, time.Millisecond, func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return flaky
				}
				return nil
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, 10, time.Millisecond, func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("down")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff_DelaysGrow(t *testing.T) {
	var stamps []time.Time
	err := RetryWithBackoff(context.Background(), 4, 10*time.Millisecond, func(context.Context) error {
		stamps = append(stamps, time.Now())
		if len(stamps) < 4 {
			return errors.New("again")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, stamps, 4)

	// delays are at least 10ms, 20ms, 40ms
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[3].Sub(stamps[2]), 40*time.Millisecond)
}
