/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry executes an operation with exponential backoff retry logic.
// It uses the backoff library to retry the operation with exponential backoff intervals
// until the operation succeeds or the maximum elapsed time is reached.
//
// Parameters:
//   - op: The operation function to execute, which should return an error
//   - maxElapsedTime: Maximum total time to spend retrying before giving up
//   - maxInterval: Maximum interval between retry attempts
//
// Returns:
//   - error: The last error returned by the operation, or nil if operation succeeded
func Retry(op backoff.Operation, maxElapsedTime, maxInterval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsedTime
	b.MaxInterval = maxInterval
	if err := backoff.Retry(op, b); err != nil {
		return err
	}
	return nil
}

// CountRetry executes an operation with fixed-interval retry logic.
// It retries the operation up to count times with a fixed interval between attempts.
// Reaching the maximum retry count stops the loop and returns the last error.
//
// Parameters:
//   - op: The operation function to execute, which should return an error
//   - count: Maximum number of attempts
//   - interval: Fixed time interval to wait between attempts
//
// Returns:
//   - error: The last error returned by the operation, or nil if operation succeeded
func CountRetry(op backoff.Operation, count int, interval time.Duration) error {
	var err error
	for i := 0; i < count; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i < count-1 {
			time.Sleep(interval)
		}
	}
	return err
}
