/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package retry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"

	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	"github.com/ascensum/gen-image-factory/pkg/database/client"
	dbutils "github.com/ascensum/gen-image-factory/pkg/database/utils"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/processor"
	"github.com/ascensum/gen-image-factory/pkg/providers"
	"github.com/ascensum/gen-image-factory/pkg/types"
	utilsbackoff "github.com/ascensum/gen-image-factory/pkg/utils/backoff"
	"github.com/ascensum/gen-image-factory/pkg/utils/fileutil"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
	"github.com/ascensum/gen-image-factory/pkg/utils/stringutil"
)

const configLookupAttempts = 2

// retrySuccessReason is recorded on the row when a replay approves an image.
const retrySuccessReason = "Retry processing successful"

// processSingleImage replays post-processing for one failed image. The image
// ends approved or retry_failed; a returned error means retry_failed.
func (x *Executor) processSingleImage(ctx context.Context, job *Job, imageId int64) error {
	image, err := x.store.GetGeneratedImage(ctx, imageId)
	if err != nil {
		return err
	}

	cfg := x.originalConfiguration(ctx, image)
	settings, opts := x.resolveSettings(job, image, cfg)
	x.seedRemoveBgKey(job, cfg)

	if err = x.store.UpdateQCStatus(ctx, image.Id, types.QCProcessing, ""); err != nil {
		klog.ErrorS(err, "failed to mark image processing", "id", image.Id)
	}

	if err = x.runPostProcessing(ctx, job, image, cfg, settings, opts); err != nil {
		x.markRetryFailed(image, failure.ReasonForError(err))
		return err
	}

	if err = x.store.UpdateQCStatus(ctx, image.Id, types.QCApproved, retrySuccessReason); err != nil {
		x.markRetryFailed(image, failure.ReasonForStage(failure.StageQC))
		return err
	}
	return nil
}

// runPostProcessing applies the recipe to the image's source file and moves
// the result to the output directory.
func (x *Executor) runPostProcessing(ctx context.Context, job *Job, image *client.GeneratedImage,
	cfg *types.JobConfiguration, settings types.ProcessingSettings, opts failure.FailOptions) error {
	source := retrySource(image)
	if source == "" {
		return failure.NewStageError(failure.StageQC, fmt.Errorf("the source file no longer exists"))
	}

	result, err := x.pipeline.ProcessImage(ctx, source, settings, opts)
	if err != nil {
		return err
	}
	removeBgFailureMode := types.NormalizeRemoveBgFailureMode(settings.RemoveBgFailureMode)
	if result.Failed(failure.StageRemoveBg) && removeBgFailureMode == types.RemoveBgMarkFailed {
		return failure.NewStageError(failure.StageRemoveBg, fmt.Errorf("background removal failed"))
	}

	outputDir := x.outputDirectory(job, cfg)
	finalPath := filepath.Join(outputDir, image.ImageMappingId+"_"+filepath.Base(result.Path))
	if err = fileutil.MoveFile(result.Path, finalPath); err != nil {
		klog.ErrorS(err, "failed to move retried image to the output directory", "mappingId", image.ImageMappingId)
		if opts.IsHard(failure.StageSaveFinal) || opts.IsHard(failure.StageConvert) {
			return failure.NewStageError(failure.StageSaveFinal, err)
		}
		// Keep the processed artifact where it is rather than losing the image.
		finalPath = result.Path
	}
	x.cleanupSource(image, source, finalPath)

	if err = x.store.UpdateImagePathsByMappingId(ctx, image.ImageMappingId, "", finalPath); err != nil {
		return failure.NewStageError(failure.StageQC, err)
	}

	if cfg.AI.RunMetadataGen && x.vision != nil {
		x.regenerateMetadata(ctx, image, cfg, finalPath)
	}
	return nil
}

// regenerateMetadata refreshes the metadata document after a successful
// retry. Failures are recorded on the row but never fail the image.
func (x *Executor) regenerateMetadata(ctx context.Context, image *client.GeneratedImage, cfg *types.JobConfiguration, imagePath string) {
	metadata, err := x.vision.GenerateMetadata(ctx, cfg.Parameters.OpenAIModel, cfg.AI.MetadataPrompt,
		dbutils.ParseNullString(image.GenerationPrompt), imagePath)
	if err != nil {
		klog.ErrorS(err, "metadata regeneration failed", "mappingId", image.ImageMappingId)
		note := map[string]interface{}{"failure": map[string]string{"stage": string(failure.StageMetadata), "error": err.Error()}}
		if uerr := x.store.UpdateMetadataById(ctx, image.Id, jsonutil.MarshalSilently(note)); uerr != nil {
			klog.ErrorS(uerr, "failed to record metadata failure", "mappingId", image.ImageMappingId)
		}
		return
	}
	if err = x.store.UpdateMetadataById(ctx, image.Id, jsonutil.MarshalSilently(metadata)); err != nil {
		klog.ErrorS(err, "failed to store metadata", "mappingId", image.ImageMappingId)
	}
}

// originalConfiguration resolves the configuration the image was produced
// with: the execution's snapshot first, then the saved configuration, then
// the fallback recipe.
func (x *Executor) originalConfiguration(ctx context.Context, image *client.GeneratedImage) *types.JobConfiguration {
	var cfg *types.JobConfiguration
	err := utilsbackoff.CountRetry(func() error {
		resolved, rerr := x.lookupConfiguration(ctx, image)
		if rerr != nil {
			return rerr
		}
		cfg = resolved
		return nil
	}, configLookupAttempts, 100*time.Millisecond)
	if err != nil {
		klog.ErrorS(err, "could not resolve the original configuration, using the fallback", "mappingId", image.ImageMappingId)
		return types.FallbackConfiguration()
	}
	return cfg
}

func (x *Executor) lookupConfiguration(ctx context.Context, image *client.GeneratedImage) (*types.JobConfiguration, error) {
	execution, err := x.store.GetJobExecution(ctx, image.ExecutionId)
	if err != nil {
		return nil, err
	}
	if snapshot := dbutils.ParseNullString(execution.ConfigSnapshot); snapshot != "" {
		var cfg types.JobConfiguration
		if err = jsonutil.Unmarshal([]byte(snapshot), &cfg); err == nil {
			return &cfg, nil
		}
		klog.ErrorS(err, "unparseable configuration snapshot", "execution", execution.Id)
	}
	if configurationId := dbutils.ParseNullString(execution.ConfigurationId); configurationId != "" {
		record, rerr := x.store.GetJobConfiguration(ctx, configurationId)
		if rerr != nil {
			return nil, rerr
		}
		var cfg types.JobConfiguration
		if rerr = jsonutil.Unmarshal([]byte(record.Payload), &cfg); rerr != nil {
			return nil, rerr
		}
		return &cfg, nil
	}
	return nil, fmt.Errorf("execution %d has no configuration snapshot", execution.Id)
}

// resolveSettings picks the recipe for this image: the row's own snapshot
// when replaying original settings, the batch overrides otherwise.
func (x *Executor) resolveSettings(job *Job, image *client.GeneratedImage, cfg *types.JobConfiguration) (types.ProcessingSettings, failure.FailOptions) {
	if job.UseOriginalSettings || job.Modified == nil {
		settings := cfg.Processing
		if raw := dbutils.ParseNullString(image.Settings); raw != "" {
			var stored types.ProcessingSettings
			if err := jsonutil.Unmarshal([]byte(raw), &stored); err == nil {
				settings = stored
			} else {
				klog.ErrorS(err, "unparseable settings snapshot, using the configuration recipe", "mappingId", image.ImageMappingId)
			}
		}
		return settings, failure.FailOptions{}
	}

	settings := cfg.Processing
	if job.Modified.Processing != nil {
		settings = *job.Modified.Processing
	}
	opts := failure.FailOptions{}
	if job.Modified.FailOptions != nil {
		opts = *job.Modified.FailOptions
	}
	return settings, opts
}

// seedRemoveBgKey re-exports the background-removal credential so the
// provider client can pick it up.
func (x *Executor) seedRemoveBgKey(job *Job, cfg *types.JobConfiguration) {
	key := cfg.Keys().RemoveBg
	if !job.UseOriginalSettings && job.Modified != nil && job.Modified.RemoveBgKey != "" {
		key = job.Modified.RemoveBgKey
	}
	if key != "" {
		if err := os.Setenv(providers.EnvRemoveBgKey, key); err != nil {
			klog.ErrorS(err, "failed to export the background-removal credential")
		}
	}
}

func (x *Executor) outputDirectory(job *Job, cfg *types.JobConfiguration) string {
	if !job.UseOriginalSettings && job.Modified != nil && job.Modified.OutputDirectory != "" {
		return job.Modified.OutputDirectory
	}
	return stringutil.FirstNonEmpty(cfg.FilePaths.OutputDirectory, commonconfig.GetOutputDirectory())
}

// retrySource picks the file to reprocess: the temp artifact when it still
// exists, otherwise the finalized file.
func retrySource(image *client.GeneratedImage) string {
	if tempPath := dbutils.ParseNullString(image.TempImagePath); tempPath != "" && fileutil.Exists(tempPath) {
		return tempPath
	}
	if finalPath := dbutils.ParseNullString(image.FinalImagePath); finalPath != "" && fileutil.Exists(finalPath) {
		return finalPath
	}
	return ""
}

// cleanupSource removes the processing work dir and the consumed temp file.
func (x *Executor) cleanupSource(image *client.GeneratedImage, source, finalPath string) {
	processor.CleanupWorkDir(source)
	if tempPath := dbutils.ParseNullString(image.TempImagePath); tempPath != "" && tempPath != finalPath && fileutil.Exists(tempPath) {
		if err := os.Remove(tempPath); err != nil {
			klog.InfoS("failed to remove the consumed temp file", "path", tempPath, "err", err)
		}
	}
}

func (x *Executor) markRetryFailed(image *client.GeneratedImage, reason string) {
	if err := x.store.UpdateQCStatus(context.Background(), image.Id, types.QCRetryFailed, reason); err != nil {
		klog.ErrorS(err, "failed to mark image retry_failed", "id", image.Id)
	}
}
