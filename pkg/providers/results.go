/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package providers

import (
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

// GeneratedItem is one downloaded image produced by a generation call.
type GeneratedItem struct {
	OutputPath string
	MappingId  string
	Prompt     string
	Seed       int64
	Settings   types.ProcessingSettings
}

// FailedItem is one image slot that could not be produced.
type FailedItem struct {
	MappingId string
	Stage     failure.Stage
	Message   string
}

// GenerationResult normalizes provider responses: a single image, a full
// batch, or a partial batch with per-item failures all use the same shape.
type GenerationResult struct {
	Items  []GeneratedItem
	Failed []FailedItem
}

// Partial reports whether the batch came back incomplete.
func (r *GenerationResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Items) > 0
}
