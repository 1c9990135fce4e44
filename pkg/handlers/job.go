/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

// StartJobRequest is the job:start payload.
type StartJobRequest struct {
	Config               *types.JobConfiguration `json:"config"`
	FailOptions          failure.FailOptions     `json:"failOptions"`
	Label                string                  `json:"label,omitempty"`
	ForceSequentialIndex *int                    `json:"__forceSequentialIndex,omitempty"`
}

func (h *Handler) jobStart(c *gin.Context) (interface{}, error) {
	var req StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if req.Config == nil {
		return nil, commonerrors.NewConfigInvalid("the configuration is empty")
	}

	sequentialIndex := -1
	if req.ForceSequentialIndex != nil {
		sequentialIndex = *req.ForceSequentialIndex
	}
	executionId, err := h.engine.StartJob(&engine.StartRequest{
		Config:               req.Config,
		FailOptions:          req.FailOptions,
		Label:                req.Label,
		ForceSequentialIndex: sequentialIndex,
	})
	if err != nil {
		return nil, err
	}
	return gin.H{"success": true, "executionId": executionId}, nil
}

func (h *Handler) jobStop(c *gin.Context) (interface{}, error) {
	if err := h.engine.StopJob(); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

func (h *Handler) jobForceStopAll(c *gin.Context) (interface{}, error) {
	if err := h.engine.ForceStopAll(); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

func (h *Handler) jobStatus(c *gin.Context) (interface{}, error) {
	return gin.H{"success": true, "status": h.engine.Status()}, nil
}

func (h *Handler) jobProgress(c *gin.Context) (interface{}, error) {
	return gin.H{"success": true, "progress": h.engine.Progress()}, nil
}

// jobLogsRequest selects the log verbosity; "verbose" includes debug records.
type jobLogsRequest struct {
	Verbosity string `json:"verbosity,omitempty"`
}

func (h *Handler) jobLogs(c *gin.Context) (interface{}, error) {
	var req jobLogsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
	}
	logs := h.engine.Logs(req.Verbosity == "verbose")
	return gin.H{"success": true, "logs": logs}, nil
}
