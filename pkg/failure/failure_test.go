/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package failure

import (
	"fmt"
	"testing"

	"gotest.tools/assert"
)

func TestReasonForError(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		expect string
	}{
		{
			name:   "tagged convert error",
			err:    NewStageError(StageConvert, fmt.Errorf("unsupported format")),
			expect: "processing_failed:convert",
		},
		{
			name:   "tagged remove_bg error",
			err:    NewStageError(StageRemoveBg, fmt.Errorf("status 402")),
			expect: "processing_failed:remove_bg",
		},
		{
			name:   "wrapped stage error",
			err:    fmt.Errorf("post-processing: %w", NewStageError(StageTrim, fmt.Errorf("no alpha"))),
			expect: "processing_failed:trim",
		},
		{
			name:   "untagged error falls back to qc",
			err:    fmt.Errorf("boom"),
			expect: "processing_failed:qc",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, ReasonForError(tc.err))
		})
	}
}

func TestIsHard(t *testing.T) {
	testCases := []struct {
		name   string
		opts   FailOptions
		stage  Stage
		expect bool
	}{
		{
			name:   "disabled is always soft",
			opts:   FailOptions{Enabled: false, Steps: []string{"convert"}},
			stage:  StageConvert,
			expect: false,
		},
		{
			name:   "enabled with matching step",
			opts:   FailOptions{Enabled: true, Steps: []string{"convert", "remove_bg"}},
			stage:  StageRemoveBg,
			expect: true,
		},
		{
			name:   "enabled without matching step",
			opts:   FailOptions{Enabled: true, Steps: []string{"convert"}},
			stage:  StageEnhancement,
			expect: false,
		},
		{
			name:   "enabled with empty steps",
			opts:   FailOptions{Enabled: true},
			stage:  StageConvert,
			expect: false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.opts.IsHard(tc.stage))
		})
	}
}
