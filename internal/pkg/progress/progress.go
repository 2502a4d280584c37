//
// Copyright (c) 2021, NVIDIA CORPORATION. All rights reserved.
//
// See LICENSE.txt for license information
//

// Package progress implements the textual progress bars the converter shows
// while replaying large call streams.
package progress

import (
	"fmt"
)

type Bar struct {
	label   string
	enabled bool
	current int
	max     int
}

func (b *Bar) display() {
	if !b.enabled {
		return
	}
	fmt.Printf("\r%s: %d/%d", b.label, b.current, b.max)
}

// NewBar starts a bar counting to max. A disabled bar stays silent, so
// callers do not need to guard every update when running quietly.
func NewBar(max int, label string, enabled bool) *Bar {
	b := new(Bar)
	b.max = max
	b.current = 0
	b.enabled = enabled
	if label == "" {
		label = "Progress"
	}
	b.label = label
	b.display()
	return b
}

func (b *Bar) Increment(val int) {
	b.current += val
	b.display()
}

// End finishes the line the bar was drawing on.
func (b *Bar) End() {
	b.display()
	if b.enabled {
		fmt.Printf("\n")
	}
	b.enabled = false
}
