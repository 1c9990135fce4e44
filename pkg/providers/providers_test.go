/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package providers

import (
	"testing"

	"gotest.tools/assert"
)

func TestParseDimensions(t *testing.T) {
	testCases := []struct {
		name    string
		dim     string
		expectW int
		expectH int
	}{
		{name: "empty falls back to square", dim: "", expectW: 1024, expectH: 1024},
		{name: "explicit pixels", dim: "1024x768", expectW: 1024, expectH: 768},
		{name: "pixels snap to grid", dim: "1000x500", expectW: 1024, expectH: 512},
		{name: "square ratio", dim: "1:1", expectW: 1024, expectH: 1024},
		{name: "garbage falls back", dim: "wide", expectW: 1024, expectH: 1024},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := parseDimensions(tc.dim)
			assert.Equal(t, tc.expectW, w)
			assert.Equal(t, tc.expectH, h)
		})
	}
}

func TestParseDimensionsRatioKeepsGrid(t *testing.T) {
	w, h := parseDimensions("16:9")
	assert.Equal(t, 0, w%64)
	assert.Equal(t, 0, h%64)
	assert.Assert(t, w > h)
}

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		expect  string
	}{
		{
			name:    "plain object",
			content: `{"passed": true}`,
			expect:  `{"passed": true}`,
		},
		{
			name:    "fenced object",
			content: "```json\n{\"passed\": false, \"reason\": \"blurry\"}\n```",
			expect:  `{"passed": false, "reason": "blurry"}`,
		},
		{
			name:    "prose around object",
			content: `Here is the verdict: {"passed": true} as requested.`,
			expect:  `{"passed": true}`,
		},
		{
			name:    "no object at all",
			content: "pass",
			expect:  "pass",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, extractJSON(tc.content))
		})
	}
}
