/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ascensum/gen-image-factory/pkg/apiutils"
	"github.com/ascensum/gen-image-factory/pkg/database/client"
	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/events"
	"github.com/ascensum/gen-image-factory/pkg/rerun"
	"github.com/ascensum/gen-image-factory/pkg/retry"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

// JobEngine is the engine surface the adapter exposes over RPC.
type JobEngine interface {
	StartJob(req *engine.StartRequest) (int64, error)
	StopJob() error
	ForceStopAll() error
	Status() *engine.Status
	Progress() engine.Progress
	Logs(verbose bool) []engine.LogEntry
	Events() *events.Broadcaster
}

// RetryExecutor is the retry-queue surface the adapter exposes over RPC.
type RetryExecutor interface {
	AddBatchRetryJob(ctx context.Context, imageIds []int64, useOriginalSettings bool, modified *retry.ModifiedSettings) (*retry.Job, error)
	QueueStatus() (queued, completed []*retry.Job, processing bool)
	ClearCompletedJobs()
	Stop()
	Events() *events.Broadcaster
}

// RerunCoordinator is the rerun surface the adapter exposes over RPC.
type RerunCoordinator interface {
	RerunJobExecution(ctx context.Context, executionId int64, keys *types.ApiKeys) (int64, error)
	RerunJobExecutions(ctx context.Context, executionIds []int64, keys *types.ApiKeys) (*rerun.BulkRerunResult, error)
	Events() *events.Broadcaster
}

// CredentialStore is the secret surface the adapter exposes over RPC.
type CredentialStore interface {
	SetSecret(ctx context.Context, account, secret string) error
	GetSecret(ctx context.Context, account string) (string, error)
	DeleteSecret(ctx context.Context, account string) error
}

// Store is the persistence surface the adapter consumes directly.
type Store interface {
	GetGeneratedImagesByQCStatus(ctx context.Context, status string) ([]*client.GeneratedImage, error)
	GetGeneratedImagesByIds(ctx context.Context, ids []int64) ([]*client.GeneratedImage, error)
	UpdateQCStatus(ctx context.Context, id int64, status, reason string) error
	DeleteGeneratedImage(ctx context.Context, id int64) error
	GetJobExecution(ctx context.Context, id int64) (*client.JobExecution, error)
	SaveSettings(ctx context.Context, payload string) error
	GetSettings(ctx context.Context) (string, error)
}

type handleFunc func(*gin.Context) (interface{}, error)

// handle executes the handler function and writes the response or the error.
func handle(c *gin.Context, fn handleFunc) {
	response, err := fn(c)
	if err != nil {
		apiutils.AbortWithApiError(c, err)
		return
	}
	code := http.StatusOK
	if c.Writer.Status() > 0 {
		code = c.Writer.Status()
	}
	c.JSON(code, response)
}

// Handler bridges the whitelisted RPC channels to the runner's components.
type Handler struct {
	engine      JobEngine
	retry       RetryExecutor
	rerun       RerunCoordinator
	credentials CredentialStore
	store       Store
	hub         *events.Broadcaster

	channels map[string]handleFunc
}

// NewHandler wires the RPC adapter from its collaborators.
func NewHandler(jobEngine JobEngine, retryExecutor RetryExecutor, rerunCoordinator RerunCoordinator,
	credentials CredentialStore, store Store) *Handler {
	h := &Handler{
		engine:      jobEngine,
		retry:       retryExecutor,
		rerun:       rerunCoordinator,
		credentials: credentials,
		store:       store,
		hub:         events.NewBroadcaster(),
	}
	h.channels = map[string]handleFunc{
		"job:start":          h.jobStart,
		"job:stop":           h.jobStop,
		"job:force-stop-all": h.jobForceStopAll,
		"job:status":         h.jobStatus,
		"job:progress":       h.jobProgress,
		"job:logs":           h.jobLogs,

		"generated-image:get-by-qc-status": h.imagesByQCStatus,
		"generated-image:update-qc-status": h.updateImageQCStatus,
		"generated-image:delete":           h.deleteImage,

		"failed-image:retry-batch":   h.retryBatch,
		"failed-image:retry-status":  h.retryStatus,
		"failed-image:clear-retries": h.clearRetries,

		"job-execution:rerun":       h.rerunExecution,
		"job-execution:rerun-batch": h.rerunExecutions,

		"get-settings":  h.getSettings,
		"save-settings": h.saveSettings,

		"credential:get":    h.getCredential,
		"credential:set":    h.setCredential,
		"credential:delete": h.deleteCredential,
	}
	return h
}

// Invoke dispatches one whitelisted channel call.
func (h *Handler) Invoke(c *gin.Context) {
	channel := c.Param("channel")
	fn, ok := h.channels[channel]
	if !ok {
		apiutils.AbortWithApiError(c, commonerrors.NewBadRequest(fmt.Sprintf("Invalid channel: %s", channel)))
		return
	}
	handle(c, fn)
}
