/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package types

import "strings"

// process modes accepted by the image provider.
const (
	ProcessModeSingle = "single"
	ProcessModeRelax  = "relax"
	ProcessModeBatch  = "batch"
)

// execution statuses
const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

// per-image QC statuses
const (
	QCPending      = "pending"
	QCProcessing   = "processing"
	QCApproved     = "approved"
	QCFailed       = "qc_failed"
	QCRetryPending = "retry_pending"
	QCRetryFailed  = "retry_failed"
)

// remove-background failure modes
const (
	RemoveBgApprove    = "approve"
	RemoveBgMarkFailed = "mark_failed"
)

// ApiKeys carries provider credentials. Keys are only ever exported into the
// process environment at job start; they must never be persisted.
type ApiKeys struct {
	OpenAI   string `json:"openai,omitempty"`
	Runware  string `json:"runware,omitempty"`
	RemoveBg string `json:"removeBg,omitempty"`
}

// FilePaths lists the user-configured locations a job reads from and writes to.
type FilePaths struct {
	OutputDirectory        string `json:"outputDirectory"`
	TempDirectory          string `json:"tempDirectory"`
	KeywordFile            string `json:"keywordFile,omitempty"`
	SystemPromptFile       string `json:"systemPromptFile,omitempty"`
	QualityCheckPromptFile string `json:"qualityCheckPromptFile,omitempty"`
	MetadataPromptFile     string `json:"metadataPromptFile,omitempty"`
}

// Parameters drives generation: counts, models, retry policy and provider tuning.
type Parameters struct {
	ProcessMode              string                 `json:"processMode"`
	Label                    string                 `json:"label,omitempty"`
	Count                    int                    `json:"count"`
	Variations               int                    `json:"variations"`
	OpenAIModel              string                 `json:"openaiModel,omitempty"`
	RunwareModel             string                 `json:"runwareModel,omitempty"`
	OutputFormat             string                 `json:"outputFormat,omitempty"`
	Dimensions               string                 `json:"dimensions,omitempty"`
	KeywordRandom            bool                   `json:"keywordRandom"`
	PollingTimeoutEnabled    bool                   `json:"pollingTimeoutEnabled"`
	PollingTimeoutSecond     int                    `json:"pollingTimeoutSecond,omitempty"`
	GenerationRetryAttempts  int                    `json:"generationRetryAttempts,omitempty"`
	GenerationRetryBackoffMs int                    `json:"generationRetryBackoffMs,omitempty"`
	RunwareAdvancedEnabled   bool                   `json:"runwareAdvancedEnabled"`
	RunwareAdvanced          map[string]interface{} `json:"runwareAdvanced,omitempty"`
}

// ProcessingSettings is the per-image post-processing recipe. A JSON snapshot of
// this struct rides on every generated image row so retries can replay it.
type ProcessingSettings struct {
	RemoveBg            bool    `json:"removeBg"`
	RemoveBgFailureMode string  `json:"removeBgFailureMode,omitempty"`
	ImageConvert        bool    `json:"imageConvert"`
	ConvertFormat       string  `json:"convertFormat,omitempty"`
	ImageEnhancement    bool    `json:"imageEnhancement"`
	SharpeningIntensity float64 `json:"sharpeningIntensity,omitempty"`
	SaturationLevel     float64 `json:"saturationLevel,omitempty"`
	TrimTransparent     bool    `json:"trimTransparent"`
}

// AISettings toggles the vision passes. The prompt strings are loaded from the
// configured prompt files at start-of-job; unreadable files leave them empty.
type AISettings struct {
	RunQualityCheck    bool   `json:"runQualityCheck"`
	RunMetadataGen     bool   `json:"runMetadataGen"`
	QualityCheckPrompt string `json:"qualityCheckPrompt,omitempty"`
	MetadataPrompt     string `json:"metadataPrompt,omitempty"`
}

// JobConfiguration is the user-saved job input.
type JobConfiguration struct {
	Id         string             `json:"id,omitempty"`
	Name       string             `json:"name,omitempty"`
	ApiKeys    *ApiKeys           `json:"apiKeys,omitempty"`
	FilePaths  FilePaths          `json:"filePaths"`
	Parameters Parameters         `json:"parameters"`
	Processing ProcessingSettings `json:"processing"`
	AI         AISettings         `json:"ai"`
}

// ImageMetadata is the vision-generated metadata document stored per image.
type ImageMetadata struct {
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	UploadTags  []string               `json:"uploadTags,omitempty"`
	Failure     map[string]interface{} `json:"failure,omitempty"`
}

// Keys returns the configured credentials, tolerating an absent block.
func (c *JobConfiguration) Keys() ApiKeys {
	if c == nil || c.ApiKeys == nil {
		return ApiKeys{}
	}
	return *c.ApiKeys
}

// Snapshot returns a sanitized copy of the configuration for persistence on an
// execution row: apiKeys removed, removeBgFailureMode normalized, and the
// advanced-provider flag derived from the payload.
func (c *JobConfiguration) Snapshot() JobConfiguration {
	snapshot := *c
	snapshot.ApiKeys = nil
	snapshot.Processing.RemoveBgFailureMode = NormalizeRemoveBgFailureMode(c.Processing.RemoveBgFailureMode)
	snapshot.Parameters.RunwareAdvancedEnabled = c.Parameters.RunwareAdvancedEnabled && len(c.Parameters.RunwareAdvanced) > 0
	return snapshot
}

// NormalizeRemoveBgFailureMode maps any unknown mode to the default "approve".
func NormalizeRemoveBgFailureMode(mode string) string {
	if strings.EqualFold(mode, RemoveBgMarkFailed) {
		return RemoveBgMarkFailed
	}
	return RemoveBgApprove
}

// DefaultProcessingSettings returns the system-default post-processing recipe,
// used when an image row carries no parseable settings snapshot.
func DefaultProcessingSettings() ProcessingSettings {
	return ProcessingSettings{
		RemoveBg:            false,
		RemoveBgFailureMode: RemoveBgApprove,
		ImageConvert:        false,
		ConvertFormat:       "jpg",
		ImageEnhancement:    false,
		SharpeningIntensity: 1.0,
		SaturationLevel:     1.0,
		TrimTransparent:     false,
	}
}

// FallbackConfiguration is the configuration used when an image's original job
// configuration can no longer be resolved.
func FallbackConfiguration() *JobConfiguration {
	return &JobConfiguration{
		Id:         "fallback",
		Processing: DefaultProcessingSettings(),
	}
}
