//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package timer implements the wall-clock timers the commands use to report
// how long a conversion took.
package timer

import "time"

// Handle is one running timer.
type Handle struct {
	start time.Time
}

// Start creates and starts a timer.
func Start() *Handle {
	h := new(Handle)
	h.start = time.Now()
	return h
}

// Elapsed returns the time since the timer started.
func (h *Handle) Elapsed() time.Duration {
	return time.Since(h.start)
}

// Stop ends the timer and returns the elapsed time as a string.
func (h *Handle) Stop() string {
	return h.Elapsed().String()
}
