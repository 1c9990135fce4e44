/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"k8s.io/klog/v2"

	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	"github.com/ascensum/gen-image-factory/pkg/database/client"
	dbutils "github.com/ascensum/gen-image-factory/pkg/database/utils"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/params"
	"github.com/ascensum/gen-image-factory/pkg/providers"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

// Stop reasons recorded on the execution row.
const (
	stopReasonUser  = "Stopped by user"
	stopReasonForce = "Force-stopped by user"
)

// StartRequest carries everything needed to launch one job.
type StartRequest struct {
	Config              *types.JobConfiguration
	FailOptions         failure.FailOptions
	IsRerun             bool
	DatabaseExecutionId int64
	// ForceSequentialIndex pins keyword selection to a deterministic
	// round-robin start. Negative means unset.
	ForceSequentialIndex int
	Label                string
}

// Progress is a point-in-time view of the running job.
type Progress struct {
	Stage      string  `json:"stage"`
	Total      int     `json:"total"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`
}

// Status describes the engine's current occupancy.
type Status struct {
	Running     bool      `json:"running"`
	ExecutionId int64     `json:"executionId,omitempty"`
	Label       string    `json:"label,omitempty"`
	StartTime   time.Time `json:"startTime,omitempty"`
	Progress    Progress  `json:"progress"`
}

type jobState struct {
	executionId int64
	label       string
	startTime   time.Time
	stage       string
	total       int
	successful  int
	failed      int
	stopReason  string
	forced      bool
}

// Engine runs one generation job at a time and owns all run state.
type Engine struct {
	store     Store
	generator Generator
	vision    Vision
	pipeline  ImageProcessor
	events    *Broadcaster
	logs      *logBuffer

	qcSettleTimeout time.Duration
	qcSettlePoll    time.Duration

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	state      *jobState
	onComplete func(executionId int64, status string)
}

// New wires an engine from its collaborators.
func New(store Store, generator Generator, vision Vision, pipeline ImageProcessor) *Engine {
	return &Engine{
		store:           store,
		generator:       generator,
		vision:          vision,
		pipeline:        pipeline,
		events:          NewBroadcaster(),
		logs:            newLogBuffer(),
		qcSettleTimeout: time.Duration(commonconfig.GetQCSettleTimeoutSecond()) * time.Second,
		qcSettlePoll:    time.Duration(commonconfig.GetQCSettlePollMs()) * time.Millisecond,
	}
}

// Events exposes the engine's event feed.
func (e *Engine) Events() *Broadcaster {
	return e.events
}

// SetCompletionCallback registers the hook invoked after a job reaches a
// terminal state. Used by the rerun coordinator to advance its queue.
func (e *Engine) SetCompletionCallback(fn func(executionId int64, status string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// IsRunning reports whether the single job slot is occupied.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status returns the current engine status.
func (e *Engine) Status() *Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	status := &Status{Running: e.running}
	if e.state != nil {
		status.ExecutionId = e.state.executionId
		status.Label = e.state.label
		status.StartTime = e.state.startTime
		status.Progress = e.progressLocked()
	}
	return status
}

// Progress returns the current job progress.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

func (e *Engine) progressLocked() Progress {
	if e.state == nil {
		return Progress{}
	}
	p := Progress{
		Stage:      e.state.stage,
		Total:      e.state.total,
		Successful: e.state.successful,
		Failed:     e.state.failed,
	}
	if p.Total > 0 {
		p.Percent = float64(p.Successful+p.Failed) / float64(p.Total) * 100
	}
	return p
}

// Logs returns the buffered job log feed.
func (e *Engine) Logs(verbose bool) []LogEntry {
	return e.logs.snapshot(verbose)
}

// StartJob validates the configuration, persists the execution row and
// launches the pipeline. Only one job may run at a time.
func (e *Engine) StartJob(req *StartRequest) (int64, error) {
	if req == nil || req.Config == nil {
		return 0, commonerrors.NewConfigInvalid("the configuration is empty")
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return 0, commonerrors.NewJobAlreadyRunning("Another job is currently running")
	}
	e.mu.Unlock()

	// A rerun without a backing execution row cannot replay anything.
	if req.IsRerun && req.DatabaseExecutionId == 0 {
		klog.Infof("rerun requested without an execution id, treating as a fresh run")
		req.IsRerun = false
	}

	cfg := req.Config
	if err := validateConfig(cfg); err != nil {
		return 0, err
	}
	seedEnvironment(cfg.Keys())

	cfg.AI.QualityCheckPrompt = params.LoadPromptFile(cfg.FilePaths.QualityCheckPromptFile)
	cfg.AI.MetadataPrompt = params.LoadPromptFile(cfg.FilePaths.MetadataPromptFile)
	systemPrompt := params.LoadPromptFile(cfg.FilePaths.SystemPromptFile)

	var keywords []string
	if cfg.FilePaths.KeywordFile != "" {
		loaded, err := params.LoadKeywords(cfg.FilePaths.KeywordFile)
		if err != nil {
			// The keyword source is an enrichment, not a requirement.
			klog.ErrorS(err, "failed to load keyword file, continuing without keywords",
				"path", cfg.FilePaths.KeywordFile)
		} else {
			keywords = loaded
		}
	}

	snapshot := cfg.Snapshot()
	snapshotJSON := string(jsonutil.MarshalSilently(snapshot))

	ctx := context.Background()
	executionId, err := e.prepareExecution(ctx, req, snapshotJSON)
	if err != nil {
		return 0, err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		cancel()
		return 0, commonerrors.NewJobAlreadyRunning("Another job is currently running")
	}
	e.running = true
	e.cancel = cancel
	e.state = &jobState{
		executionId: executionId,
		label:       label(req),
		startTime:   time.Now().UTC(),
		stage:       "initializing",
	}
	e.mu.Unlock()

	e.logs.reset()
	e.logf(LogLevelInfo, "job %d started", executionId)

	go e.run(runCtx, req, keywords, systemPrompt, executionId)
	return executionId, nil
}

// StopJob requests a graceful stop: the in-flight step is left to finish and
// the remaining phases are skipped. Calling it with no job running is a no-op.
func (e *Engine) StopJob() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.state.stopReason = stopReasonUser
	return nil
}

// stopRequested reports whether a stop of either flavor has been requested.
func (e *Engine) stopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil && e.state.stopReason != ""
}

// ForceStopAll aborts the running job immediately.
func (e *Engine) ForceStopAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.state.stopReason = stopReasonForce
	e.state.forced = true
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// prepareExecution creates the execution row or, for a rerun, flips the
// existing one back to running.
func (e *Engine) prepareExecution(ctx context.Context, req *StartRequest, snapshotJSON string) (int64, error) {
	now := time.Now().UTC()
	if req.DatabaseExecutionId > 0 {
		execution, err := e.store.GetJobExecution(ctx, req.DatabaseExecutionId)
		if err != nil {
			return 0, err
		}
		execution.Status = types.ExecutionRunning
		execution.IsRerun = req.IsRerun
		execution.StartTime = dbutils.NullTime(now)
		execution.EndTime = dbutils.NullTime(time.Time{})
		execution.ErrorMessage = dbutils.NullString("")
		execution.ConfigSnapshot = dbutils.NullString(snapshotJSON)
		if req.Label != "" {
			execution.Label = dbutils.NullString(req.Label)
		}
		if err = e.store.UpdateJobExecution(ctx, execution); err != nil {
			return 0, err
		}
		return execution.Id, nil
	}

	execution := &client.JobExecution{
		ConfigurationId: dbutils.NullString(req.Config.Id),
		Label:           dbutils.NullString(label(req)),
		Status:          types.ExecutionRunning,
		IsRerun:         req.IsRerun,
		StartTime:       dbutils.NullTime(now),
		ConfigSnapshot:  dbutils.NullString(snapshotJSON),
	}
	return e.store.InsertJobExecution(ctx, execution)
}

func label(req *StartRequest) string {
	if req.Label != "" {
		return req.Label
	}
	if req.Config != nil {
		if req.Config.Parameters.Label != "" {
			return req.Config.Parameters.Label
		}
		return req.Config.Name
	}
	return ""
}

// validateConfig rejects configurations the pipeline cannot run.
func validateConfig(cfg *types.JobConfiguration) error {
	keys := cfg.Keys()
	if keys.OpenAI == "" && os.Getenv(providers.EnvOpenAIKey) == "" {
		return commonerrors.NewConfigInvalid("the OpenAI API key is required")
	}
	if keys.Runware == "" && os.Getenv(providers.EnvRunwareKey) == "" {
		return commonerrors.NewConfigInvalid("the image provider API key is required")
	}
	if cfg.FilePaths.OutputDirectory == "" && commonconfig.GetOutputDirectory() == "" {
		return commonerrors.NewConfigInvalid("the output directory is required")
	}
	switch cfg.Parameters.ProcessMode {
	case "", types.ProcessModeSingle, types.ProcessModeRelax, types.ProcessModeBatch:
	default:
		return commonerrors.NewConfigInvalid(
			fmt.Sprintf("unknown process mode %q", cfg.Parameters.ProcessMode))
	}
	return nil
}

// seedEnvironment exports the configured credentials and the debug flag so
// downstream provider calls can read them uniformly.
func seedEnvironment(keys types.ApiKeys) {
	if keys.OpenAI != "" {
		os.Setenv(providers.EnvOpenAIKey, keys.OpenAI)
	}
	if keys.Runware != "" {
		os.Setenv(providers.EnvRunwareKey, keys.Runware)
	}
	if keys.RemoveBg != "" {
		os.Setenv(providers.EnvRemoveBgKey, keys.RemoveBg)
	}
	os.Setenv(providers.EnvDebugMode, strconv.FormatBool(commonconfig.IsDebugMode()))
}

// logf records a line in the job log buffer and publishes it as an event.
func (e *Engine) logf(level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	e.logs.append(level, message)
	ev := Event{Type: EventLog, Payload: map[string]interface{}{"level": level, "message": message}}
	if level == LogLevelError {
		ev.Type = EventError
	}
	e.mu.Lock()
	if e.state != nil {
		ev.ExecutionId = e.state.executionId
	}
	e.mu.Unlock()
	e.events.Publish(ev)
}

// setStage updates the progress stage and publishes a progress event.
func (e *Engine) setStage(stage string) {
	e.mu.Lock()
	if e.state != nil {
		e.state.stage = stage
	}
	progress := e.progressLocked()
	var executionId int64
	if e.state != nil {
		executionId = e.state.executionId
	}
	e.mu.Unlock()
	e.events.Publish(Event{
		Type:        EventProgress,
		ExecutionId: executionId,
		Payload: map[string]interface{}{
			"stage":      progress.Stage,
			"total":      progress.Total,
			"successful": progress.Successful,
			"failed":     progress.Failed,
			"percent":    progress.Percent,
		},
	})
}
