/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"

	"github.com/ascensum/gen-image-factory/pkg/database/client"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/processor"
	"github.com/ascensum/gen-image-factory/pkg/providers"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

// Store is the persistence surface the engine consumes. *client.Client
// implements it; tests substitute an in-memory fake.
type Store interface {
	InsertJobExecution(ctx context.Context, execution *client.JobExecution) (int64, error)
	UpdateJobExecution(ctx context.Context, execution *client.JobExecution) error
	UpdateJobExecutionStatistics(ctx context.Context, id int64, total, successful, failed int) error
	SetJobExecutionFinished(ctx context.Context, id int64, status, errorMessage string) error
	GetJobExecution(ctx context.Context, id int64) (*client.JobExecution, error)

	InsertGeneratedImage(ctx context.Context, image *client.GeneratedImage) (int64, error)
	GetGeneratedImageByMappingId(ctx context.Context, mappingId string) (*client.GeneratedImage, error)
	GetGeneratedImagesByExecution(ctx context.Context, executionId int64) ([]*client.GeneratedImage, error)
	UpdateQCStatusByMappingId(ctx context.Context, mappingId, status, reason string) error
	UpdateImagePathsByMappingId(ctx context.Context, mappingId, tempPath, finalPath string) error
	UpdateMetadataById(ctx context.Context, id int64, metadata []byte) error
}

// Generator produces images from a prompt.
type Generator interface {
	GenerateImages(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerationResult, error)
}

// Vision is the language/vision model surface used by the pipeline.
type Vision interface {
	GenerateParameters(ctx context.Context, model, systemPrompt, keyword string) (string, error)
	RunQualityCheck(ctx context.Context, model, qcPrompt, imagePath string) (bool, string, error)
	GenerateMetadata(ctx context.Context, model, metadataPrompt, prompt, imagePath string) (*types.ImageMetadata, error)
}

// ImageProcessor applies the post-processing recipe to one image.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, srcPath string, settings types.ProcessingSettings, opts failure.FailOptions) (*processor.Result, error)
}
