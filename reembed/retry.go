// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"log/slog"
	"time"
)

// RetryWithBackoff calls op up to maxAttempts times, sleeping baseDelay,
// 2*baseDelay, 4*baseDelay and so on between failures. It returns nil on the
// first success, the context error if ctx ends first, or the last error from
// op.
func RetryWithBackoff(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) error) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = op(ctx); err == nil {
			if attempt > 0 {
				slog.Debug("succeeded after retry", "attempts", attempt+1)
			}
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := baseDelay << uint(attempt)
		slog.Debug("attempt failed", "attempt", attempt+1, "max_attempts", maxAttempts, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
