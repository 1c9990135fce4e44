/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import (
	"regexp"
	"strings"
)

var (
	// Midjourney-style render flags are never persisted with a prompt.
	rxRenderFlags = regexp.MustCompile(`\s*--(?:stylize|style|seed|ar|q|v)\b(?:\s+\S+)?`)
	rxSpaces      = regexp.MustCompile(`\s{2,}`)
)

// StripRenderFlags removes generator command-line flags (--v, --ar, --q, --seed,
// --style, --stylize) and their values from a prompt string and collapses the
// whitespace left behind.
func StripRenderFlags(prompt string) string {
	if prompt == "" {
		return ""
	}
	result := rxRenderFlags.ReplaceAllString(prompt, " ")
	result = rxSpaces.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// StrCaseEqual compares two strings case-insensitively.
func StrCaseEqual(str1, str2 string) bool {
	return strings.EqualFold(str1, str2)
}

// Split splits a string by the given separator and trims whitespace from each part.
func Split(str, sep string) []string {
	if len(str) == 0 {
		return nil
	}
	strList := strings.Split(str, sep)
	var result []string
	for _, s := range strList {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		result = append(result, s)
	}
	return result
}

// FirstNonEmpty returns the first string in the list that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
