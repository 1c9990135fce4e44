/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package failure

import (
	"errors"
	"fmt"
)

// Stage identifies the post-processing step an image failed in.
type Stage string

const (
	StageConvert     Stage = "convert"
	StageSaveFinal   Stage = "save_final"
	StageMetadata    Stage = "metadata"
	StageTrim        Stage = "trim"
	StageEnhancement Stage = "enhancement"
	StageRemoveBg    Stage = "remove_bg"
	StageQC          Stage = "qc"
)

const (
	// ReasonPrefix is the common prefix for stage-derived QC reasons.
	ReasonPrefix = "processing_failed:"

	// ReasonMissingQCInput marks images whose source file vanished before the
	// quality check could read it.
	ReasonMissingQCInput = "QC input path is missing"
)

// FailOptions selects which post-processing stages are treated as hard
// failures. When disabled, every stage failure is soft.
type FailOptions struct {
	Enabled bool     `json:"enabled"`
	Steps   []string `json:"steps,omitempty"`
}

// StageError wraps an error with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError tags err with the given stage.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ReasonForStage maps a stage to its persisted QC reason.
func ReasonForStage(stage Stage) string {
	return ReasonPrefix + string(stage)
}

// ReasonForError extracts the stage from err and maps it to a QC reason.
// Errors without a stage tag are attributed to the QC stage itself.
func ReasonForError(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return ReasonForStage(stageErr.Stage)
	}
	return ReasonForStage(StageQC)
}

// StageOf returns the stage tagged on err, or StageQC when untagged.
func StageOf(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return StageQC
}

// IsHard reports whether a failure in the given stage must fail the image
// rather than fall back to the unprocessed source.
func (f FailOptions) IsHard(stage Stage) bool {
	if !f.Enabled {
		return false
	}
	for _, step := range f.Steps {
		if step == string(stage) {
			return true
		}
	}
	return false
}
