/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"fmt"
	"time"
)

const RFC3339NoZone = "2006-01-02T15:04:05"

// FormatRFC3339 formats a time in RFC3339 layout without a zone suffix.
func FormatRFC3339(t time.Time) string {
	return t.Format(RFC3339NoZone)
}

// FormatDuration renders a second count as a compact h/m/s string.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	d := time.Duration(seconds) * time.Second
	h := int64(d.Hours())
	m := int64(d.Minutes()) % 60
	s := seconds % 60
	result := ""
	if h > 0 {
		result += fmt.Sprintf("%dh", h)
	}
	if m > 0 {
		result += fmt.Sprintf("%dm", m)
	}
	if s > 0 && h == 0 {
		result += fmt.Sprintf("%ds", s)
	}
	if result == "" {
		result = "0s"
	}
	return result
}
