/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import (
	"testing"

	"gotest.tools/assert"
)

func TestStripRenderFlags(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			"no flags",
			"a lighthouse at dawn, oil painting",
			"a lighthouse at dawn, oil painting",
		},
		{
			"aspect ratio and version",
			"a lighthouse at dawn --ar 16:9 --v 6",
			"a lighthouse at dawn",
		},
		{
			"all flags",
			"city skyline --v 5 --ar 3:2 --q 2 --seed 1234 --style raw --stylize 750",
			"city skyline",
		},
		{
			"flag in the middle",
			"red fox --seed 42 in deep snow",
			"red fox in deep snow",
		},
		{
			"empty",
			"",
			"",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, StripRenderFlags(test.input), test.expect)
		})
	}
}

func TestSplit(t *testing.T) {
	result := Split("16:9, 1:1 , ,4:5", ",")
	assert.Equal(t, len(result), 3)
	assert.Equal(t, result[0], "16:9")
	assert.Equal(t, result[1], "1:1")
	assert.Equal(t, result[2], "4:5")
	assert.Equal(t, len(Split("", ",")), 0)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, FirstNonEmpty("", "  ", "fallback", "other"), "fallback")
	assert.Equal(t, FirstNonEmpty(), "")
}

func TestStrCaseEqual(t *testing.T) {
	assert.Assert(t, StrCaseEqual("WebP", "webp"))
	assert.Assert(t, !StrCaseEqual("png", "jpg"))
}
