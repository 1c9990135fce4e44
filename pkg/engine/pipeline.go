/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	"github.com/ascensum/gen-image-factory/pkg/database/client"
	dbutils "github.com/ascensum/gen-image-factory/pkg/database/utils"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/params"
	"github.com/ascensum/gen-image-factory/pkg/processor"
	"github.com/ascensum/gen-image-factory/pkg/providers"
	"github.com/ascensum/gen-image-factory/pkg/types"
	utilsbackoff "github.com/ascensum/gen-image-factory/pkg/utils/backoff"
	"github.com/ascensum/gen-image-factory/pkg/utils/fileutil"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
	"github.com/ascensum/gen-image-factory/pkg/utils/stringutil"
)

// run drives one job through generation, metadata, QC and finalization. A
// metadata error or a stop request skips the remaining phases; reconcile and
// finalize always run so every row ends in a terminal state.
func (e *Engine) run(ctx context.Context, req *StartRequest, keywords []string, systemPrompt string, executionId int64) {
	cfg := req.Config
	var jobErr error

	e.setStage("generating")
	e.generationPhase(ctx, req, keywords, systemPrompt, executionId)

	if ctx.Err() == nil && !e.stopRequested() && cfg.AI.RunMetadataGen {
		e.setStage("metadata")
		jobErr = e.metadataPhase(ctx, cfg, executionId)
	}

	if jobErr == nil && ctx.Err() == nil && !e.stopRequested() {
		e.setStage("quality_check")
		e.qcPhase(ctx, cfg, req.FailOptions, executionId)
	}

	e.reconcile(executionId, cfg)
	e.finalize(executionId, jobErr)
}

// generationPhase runs the per-generation loop and persists one row per
// produced or failed image slot.
func (e *Engine) generationPhase(ctx context.Context, req *StartRequest, keywords []string, systemPrompt string, executionId int64) {
	cfg := req.Config
	count := cfg.Parameters.Count
	if count < 1 {
		count = 1
	}
	variations := params.ClampVariations(cfg.Parameters.Variations, count)
	ratios := params.NormalizeAspectRatios(cfg.Parameters.Dimensions)
	tempDir := stringutil.FirstNonEmpty(cfg.FilePaths.TempDirectory, commonconfig.GetTempDirectory())

	attempts := cfg.Parameters.GenerationRetryAttempts
	if attempts <= 0 {
		attempts = commonconfig.GetGenerationRetryAttempts()
	}
	backoffMs := cfg.Parameters.GenerationRetryBackoffMs
	if backoffMs <= 0 {
		backoffMs = commonconfig.GetGenerationRetryBackoffMs()
	}
	var pollTimeout time.Duration
	if cfg.Parameters.PollingTimeoutEnabled {
		seconds := cfg.Parameters.PollingTimeoutSecond
		if seconds <= 0 {
			seconds = commonconfig.GetPollTimeoutSecond()
		}
		pollTimeout = time.Duration(seconds) * time.Second
	}

	e.mu.Lock()
	e.state.total = count * variations
	e.mu.Unlock()

	settings := cfg.Processing
	settings.RemoveBgFailureMode = types.NormalizeRemoveBgFailureMode(settings.RemoveBgFailureMode)

	for i := 0; i < count; i++ {
		if ctx.Err() != nil || e.stopRequested() {
			return
		}
		sequentialIndex := -1
		if req.ForceSequentialIndex >= 0 {
			sequentialIndex = req.ForceSequentialIndex + i
		}
		keyword := params.Pick(keywords, cfg.Parameters.KeywordRandom, sequentialIndex)

		prompt := keyword
		err := utilsbackoff.CountRetry(func() error {
			generated, perr := e.vision.GenerateParameters(ctx, cfg.Parameters.OpenAIModel, systemPrompt, keyword)
			if perr != nil {
				return perr
			}
			prompt = generated
			return nil
		}, attempts, time.Duration(backoffMs)*time.Millisecond)
		if err != nil {
			e.logf(LogLevelError, "prompt generation failed for generation %d: %v", i+1, err)
			if prompt == "" {
				e.recordGenerationFailure(executionId, variations, "prompt generation produced nothing")
				continue
			}
		}

		var advanced map[string]interface{}
		if cfg.Parameters.RunwareAdvancedEnabled {
			advanced = cfg.Parameters.RunwareAdvanced
		}
		// Aspect ratios rotate across the produced images of the generation,
		// one provider call per distinct ratio in the rotation.
		for _, group := range ratioGroups(ratios, variations) {
			genReq := &providers.GenerateRequest{
				Prompt:      prompt,
				Model:       cfg.Parameters.RunwareModel,
				Count:       group.slots,
				Dimensions:  group.dimensions,
				ProcessMode: cfg.Parameters.ProcessMode,
				Advanced:    advanced,
				Settings:    settings,
				OutputDir:   tempDir,
				PollTimeout: pollTimeout,
			}

			var result *providers.GenerationResult
			err = utilsbackoff.CountRetry(func() error {
				var gerr error
				result, gerr = e.generator.GenerateImages(ctx, genReq)
				return gerr
			}, attempts, time.Duration(backoffMs)*time.Millisecond)
			if err != nil {
				e.logf(LogLevelError, "generation %d failed: %v", i+1, err)
				e.recordGenerationFailure(executionId, group.slots, err.Error())
				continue
			}

			e.persistGeneration(executionId, result, settings, cfg.AI.RunQualityCheck)
		}
		e.setStage("generating")
	}
}

type ratioGroup struct {
	dimensions string
	slots      int
}

// ratioGroups assigns aspect ratios to a generation's image slots in rotation
// and folds equal assignments into one provider call each.
func ratioGroups(ratios []string, variations int) []ratioGroup {
	if len(ratios) <= 1 {
		dimensions := ""
		if len(ratios) == 1 {
			dimensions = ratios[0]
		}
		return []ratioGroup{{dimensions: dimensions, slots: variations}}
	}
	var groups []ratioGroup
	index := make(map[string]int, len(ratios))
	for slot := 0; slot < variations; slot++ {
		dimensions := params.PickAspectRatio(ratios, slot)
		if at, ok := index[dimensions]; ok {
			groups[at].slots++
			continue
		}
		index[dimensions] = len(groups)
		groups = append(groups, ratioGroup{dimensions: dimensions, slots: 1})
	}
	return groups
}

// recordGenerationFailure persists placeholder failed rows for a generation
// that produced nothing.
func (e *Engine) recordGenerationFailure(executionId int64, slots int, message string) {
	ctx := context.Background()
	for i := 0; i < slots; i++ {
		image := &client.GeneratedImage{
			ImageMappingId: uuid.NewString(),
			ExecutionId:    executionId,
			QCStatus:       types.QCFailed,
			QCReason:       dbutils.NullString(failure.ReasonForStage(failure.StageQC)),
			Metadata:       dbutils.NullString(string(jsonutil.MarshalSilently(map[string]string{"error": message}))),
			CreateTime:     dbutils.NullTime(time.Now().UTC()),
		}
		if _, err := e.store.InsertGeneratedImage(ctx, image); err != nil {
			klog.ErrorS(err, "failed to persist failed image slot", "execution", executionId)
		}
	}
	e.mu.Lock()
	e.state.failed += slots
	e.mu.Unlock()
}

// persistGeneration writes one row per produced image and per failed slot.
// Prompts are sanitized before they reach the database. Produced rows start
// in a review placeholder: qc_failed until the QC pass rules on them when QC
// is on, pending otherwise.
func (e *Engine) persistGeneration(executionId int64, result *providers.GenerationResult, settings types.ProcessingSettings, qcEnabled bool) {
	ctx := context.Background()
	settingsJSON := string(jsonutil.MarshalSilently(settings))
	now := time.Now().UTC()

	placeholder := types.QCPending
	if qcEnabled {
		placeholder = types.QCFailed
	}
	for _, item := range result.Items {
		image := &client.GeneratedImage{
			ImageMappingId:   item.MappingId,
			ExecutionId:      executionId,
			GenerationPrompt: dbutils.NullString(stringutil.StripRenderFlags(item.Prompt)),
			SeedNumber:       dbutils.NullInt64(item.Seed),
			QCStatus:         placeholder,
			TempImagePath:    dbutils.NullString(item.OutputPath),
			Settings:         dbutils.NullString(settingsJSON),
			CreateTime:       dbutils.NullTime(now),
		}
		if _, err := e.store.InsertGeneratedImage(ctx, image); err != nil {
			klog.ErrorS(err, "failed to persist generated image", "mappingId", item.MappingId)
		}
	}
	for _, failed := range result.Failed {
		image := &client.GeneratedImage{
			ImageMappingId: failed.MappingId,
			ExecutionId:    executionId,
			QCStatus:       types.QCFailed,
			QCReason:       dbutils.NullString(failure.ReasonForStage(failed.Stage)),
			Metadata:       dbutils.NullString(string(jsonutil.MarshalSilently(map[string]string{"error": failed.Message}))),
			CreateTime:     dbutils.NullTime(now),
		}
		if _, err := e.store.InsertGeneratedImage(ctx, image); err != nil {
			klog.ErrorS(err, "failed to persist failed image slot", "mappingId", failed.MappingId)
		}
	}

	e.mu.Lock()
	e.state.failed += len(result.Failed)
	e.mu.Unlock()
}

// awaitingReview reports whether a row is a generation-phase placeholder the
// metadata and QC passes still need to rule on. Placeholders persisted under
// the qc_failed review state carry no reason, which tells them apart from
// genuinely failed slots.
func awaitingReview(image *client.GeneratedImage) bool {
	switch image.QCStatus {
	case types.QCPending:
		return true
	case types.QCFailed:
		return dbutils.ParseNullString(image.QCReason) == "" &&
			dbutils.ParseNullString(image.TempImagePath) != ""
	}
	return false
}

// metadataPhase generates metadata for every image awaiting review. Each
// failure marks its image, and any failure fails the whole job once the pass
// has visited every image.
func (e *Engine) metadataPhase(ctx context.Context, cfg *types.JobConfiguration, executionId int64) error {
	images, err := e.store.GetGeneratedImagesByExecution(ctx, executionId)
	if err != nil {
		e.logf(LogLevelError, "failed to list images for metadata generation: %v", err)
		return nil
	}

	failures := 0
	for _, image := range images {
		if !awaitingReview(image) {
			continue
		}
		if ctx.Err() != nil || e.stopRequested() {
			return nil
		}
		metadata, merr := e.vision.GenerateMetadata(ctx, cfg.Parameters.OpenAIModel, cfg.AI.MetadataPrompt,
			dbutils.ParseNullString(image.GenerationPrompt), dbutils.ParseNullString(image.TempImagePath))
		if merr != nil {
			failures++
			e.logf(LogLevelError, "metadata generation failed for image %s: %v", image.ImageMappingId, merr)
			note := map[string]interface{}{"failure": map[string]string{"stage": string(failure.StageMetadata), "error": merr.Error()}}
			if err = e.store.UpdateMetadataById(ctx, image.Id, jsonutil.MarshalSilently(note)); err != nil {
				klog.ErrorS(err, "failed to record metadata failure", "mappingId", image.ImageMappingId)
			}
			e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageMetadata))
			continue
		}
		if err = e.store.UpdateMetadataById(ctx, image.Id, jsonutil.MarshalSilently(metadata)); err != nil {
			klog.ErrorS(err, "failed to store metadata", "mappingId", image.ImageMappingId)
		}
	}

	if failures > 0 {
		return fmt.Errorf("Metadata generation failed")
	}
	return nil
}

// qcPhase runs quality checks, post-processing and the move to the output
// directory for every pending image.
func (e *Engine) qcPhase(ctx context.Context, cfg *types.JobConfiguration, opts failure.FailOptions, executionId int64) {
	images, err := e.store.GetGeneratedImagesByExecution(ctx, executionId)
	if err != nil {
		e.logf(LogLevelError, "failed to list images for quality check: %v", err)
		return
	}
	outputDir := stringutil.FirstNonEmpty(cfg.FilePaths.OutputDirectory, commonconfig.GetOutputDirectory())
	removeBgFailureMode := types.NormalizeRemoveBgFailureMode(cfg.Processing.RemoveBgFailureMode)

	for _, image := range images {
		if !awaitingReview(image) {
			continue
		}
		if ctx.Err() != nil || e.stopRequested() {
			return
		}
		e.processPendingImage(ctx, cfg, opts, image, outputDir, removeBgFailureMode)
	}
}

// processPendingImage takes one pending row through QC, processing and the
// final move.
func (e *Engine) processPendingImage(ctx context.Context, cfg *types.JobConfiguration, opts failure.FailOptions,
	image *client.GeneratedImage, outputDir, removeBgFailureMode string) {
	tempPath := dbutils.ParseNullString(image.TempImagePath)
	if tempPath == "" || !fileutil.Exists(tempPath) {
		e.failImage(image.ImageMappingId, failure.ReasonMissingQCInput)
		return
	}

	if cfg.AI.RunQualityCheck {
		if err := e.store.UpdateQCStatusByMappingId(ctx, image.ImageMappingId, types.QCProcessing, ""); err != nil {
			klog.ErrorS(err, "failed to mark image processing", "mappingId", image.ImageMappingId)
		}
		passed, reason, err := e.vision.RunQualityCheck(ctx, cfg.Parameters.OpenAIModel, cfg.AI.QualityCheckPrompt, tempPath)
		if err != nil {
			e.logf(LogLevelError, "quality check failed for image %s: %v", image.ImageMappingId, err)
			e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageQC))
			return
		}
		if !passed {
			if reason == "" {
				reason = failure.ReasonForStage(failure.StageQC)
			}
			e.failImage(image.ImageMappingId, reason)
			return
		}
	}

	settings := imageSettings(image)
	result, err := e.pipeline.ProcessImage(ctx, tempPath, settings, opts)
	if err != nil {
		e.logf(LogLevelError, "post-processing failed for image %s: %v", image.ImageMappingId, err)
		e.failImage(image.ImageMappingId, failure.ReasonForError(err))
		return
	}
	if result.Failed(failure.StageRemoveBg) && removeBgFailureMode == types.RemoveBgMarkFailed {
		e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageRemoveBg))
		return
	}

	finalPath := filepath.Join(outputDir, image.ImageMappingId+"_"+filepath.Base(result.Path))
	if err = fileutil.MoveFile(result.Path, finalPath); err != nil {
		e.logf(LogLevelError, "failed to move image %s to the output directory: %v", image.ImageMappingId, err)
		if opts.IsHard(failure.StageSaveFinal) || opts.IsHard(failure.StageConvert) {
			e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageSaveFinal))
			return
		}
		// Keep the processed artifact where it is rather than losing the image.
		finalPath = result.Path
	}
	processor.CleanupWorkDir(tempPath)

	// The final path must be on the row before the image can be approved.
	dbCtx := context.Background()
	if err = e.store.UpdateImagePathsByMappingId(dbCtx, image.ImageMappingId, "", finalPath); err != nil {
		e.logf(LogLevelError, "failed to store the final path for image %s: %v", image.ImageMappingId, err)
		e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageQC))
		return
	}
	reason := ""
	if !cfg.AI.RunQualityCheck {
		reason = "QC disabled"
	}
	if err = e.store.UpdateQCStatusByMappingId(dbCtx, image.ImageMappingId, types.QCApproved, reason); err != nil {
		e.logf(LogLevelError, "failed to approve image %s: %v", image.ImageMappingId, err)
		return
	}
	e.mu.Lock()
	e.state.successful++
	e.mu.Unlock()
}

// imageSettings decodes the processing recipe stored on the row, falling
// back to the system default when it is absent or unparseable.
func imageSettings(image *client.GeneratedImage) types.ProcessingSettings {
	raw := dbutils.ParseNullString(image.Settings)
	if raw == "" {
		return types.DefaultProcessingSettings()
	}
	var settings types.ProcessingSettings
	if err := jsonutil.Unmarshal([]byte(raw), &settings); err != nil {
		klog.ErrorS(err, "unparseable settings snapshot, using defaults", "mappingId", image.ImageMappingId)
		return types.DefaultProcessingSettings()
	}
	return settings
}

// failImage marks one image failed and bumps the failure counter.
func (e *Engine) failImage(mappingId, reason string) {
	if err := e.store.UpdateQCStatusByMappingId(context.Background(), mappingId, types.QCFailed, reason); err != nil {
		klog.ErrorS(err, "failed to mark image failed", "mappingId", mappingId)
	}
	e.mu.Lock()
	e.state.failed++
	e.mu.Unlock()
}

// reconcile repairs rows the run left inconsistent: images stuck in the
// transient processing state are failed, and approved images missing a final
// path get a last-chance move so downstream consumers always see a file.
func (e *Engine) reconcile(executionId int64, cfg *types.JobConfiguration) {
	ctx := context.Background()
	images, err := e.store.GetGeneratedImagesByExecution(ctx, executionId)
	if err != nil {
		klog.ErrorS(err, "failed to list images for reconciliation", "execution", executionId)
		return
	}
	outputDir := stringutil.FirstNonEmpty(cfg.FilePaths.OutputDirectory, commonconfig.GetOutputDirectory())
	removeBgFailureMode := types.NormalizeRemoveBgFailureMode(cfg.Processing.RemoveBgFailureMode)

	for _, image := range images {
		switch {
		case image.QCStatus == types.QCProcessing:
			klog.Infof("image %s was left processing, marking failed", image.ImageMappingId)
			e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageQC))
		case image.QCStatus == types.QCApproved && dbutils.ParseNullString(image.FinalImagePath) == "":
			e.repairApprovedImage(ctx, image, outputDir, removeBgFailureMode)
		}
	}
}

// repairApprovedImage re-attempts the final move for an approved image that
// never got a finalImagePath. When the move keeps failing, the processed temp
// file itself is recorded as the final artifact; an image with no recoverable
// file is failed under the mark_failed background-removal policy.
func (e *Engine) repairApprovedImage(ctx context.Context, image *client.GeneratedImage, outputDir, removeBgFailureMode string) {
	tempPath := dbutils.ParseNullString(image.TempImagePath)
	if tempPath != "" && fileutil.Exists(tempPath) {
		finalPath := filepath.Join(outputDir, image.ImageMappingId+"_"+filepath.Base(tempPath))
		if err := fileutil.MoveFile(tempPath, finalPath); err != nil {
			klog.ErrorS(err, "final move failed again, keeping the temp artifact", "mappingId", image.ImageMappingId)
			finalPath = tempPath
		}
		err := e.store.UpdateImagePathsByMappingId(ctx, image.ImageMappingId, "", finalPath)
		if err == nil {
			return
		}
		klog.ErrorS(err, "failed to record the repaired path", "mappingId", image.ImageMappingId)
	}
	if removeBgFailureMode == types.RemoveBgMarkFailed {
		e.failImage(image.ImageMappingId, failure.ReasonForStage(failure.StageRemoveBg))
	}
}

// waitForQCToSettle polls until no image of the execution is in a transient
// state, bounded by the settle timeout. Running out of time is an error the
// caller must treat as a failed finalization.
func (e *Engine) waitForQCToSettle(executionId int64) error {
	deadline := time.Now().Add(e.qcSettleTimeout)
	for time.Now().Before(deadline) {
		images, err := e.store.GetGeneratedImagesByExecution(context.Background(), executionId)
		if err != nil {
			klog.ErrorS(err, "failed to poll images while waiting for quality checks", "execution", executionId)
			return nil
		}
		settled := true
		for _, image := range images {
			if image.QCStatus == types.QCProcessing || image.QCStatus == types.QCRetryPending {
				settled = false
				break
			}
		}
		if settled {
			return nil
		}
		time.Sleep(e.qcSettlePoll)
	}
	return fmt.Errorf("quality checks did not settle within %s", e.qcSettleTimeout)
}

// finalize recomputes statistics from the database, stamps the terminal
// status and releases the job slot.
func (e *Engine) finalize(executionId int64, jobErr error) {
	if err := e.waitForQCToSettle(executionId); err != nil && jobErr == nil {
		jobErr = err
	}

	ctx := context.Background()
	total, successful, failed := 0, 0, 0
	if images, err := e.store.GetGeneratedImagesByExecution(ctx, executionId); err == nil {
		total = len(images)
		for _, image := range images {
			if image.QCStatus == types.QCApproved {
				successful++
			} else if image.QCStatus != types.QCPending {
				failed++
			}
		}
	}

	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	// Per-image failures never fail the job on their own; only a stop
	// request or a job-level error does.
	status := types.ExecutionCompleted
	message := ""
	switch {
	case state != nil && state.stopReason != "":
		status = types.ExecutionFailed
		message = state.stopReason
	case jobErr != nil:
		status = types.ExecutionFailed
		message = jobErr.Error()
	}

	if err := e.store.UpdateJobExecutionStatistics(ctx, executionId, total, successful, failed); err != nil {
		klog.ErrorS(err, "failed to store execution statistics", "execution", executionId)
	}
	if err := e.store.SetJobExecutionFinished(ctx, executionId, status, message); err != nil {
		klog.ErrorS(err, "failed to finish execution", "execution", executionId)
	}

	e.logf(LogLevelInfo, "job %d finished with status %s (%d/%d approved)", executionId, status, successful, total)
	if jobErr != nil {
		e.events.Publish(Event{
			Type:        EventError,
			ExecutionId: executionId,
			Payload: map[string]interface{}{
				"code":    "JOB_EXECUTION_ERROR",
				"message": jobErr.Error(),
			},
		})
	}
	e.events.Publish(Event{
		Type:        EventJobComplete,
		ExecutionId: executionId,
		Payload: map[string]interface{}{
			"status":     status,
			"total":      total,
			"successful": successful,
			"failed":     failed,
			"message":    message,
		},
	})

	e.mu.Lock()
	e.running = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.state != nil {
		e.state.total = total
		e.state.successful = successful
		e.state.failed = failed
	}
	callback := e.onComplete
	e.mu.Unlock()

	if callback != nil {
		callback(executionId, status)
	}
}
