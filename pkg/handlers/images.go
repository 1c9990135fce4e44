/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/retry"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

var knownQCStatuses = map[string]bool{
	types.QCPending:      true,
	types.QCProcessing:   true,
	types.QCApproved:     true,
	types.QCFailed:       true,
	types.QCRetryPending: true,
	types.QCRetryFailed:  true,
}

type imagesByQCStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) imagesByQCStatus(c *gin.Context) (interface{}, error) {
	var req imagesByQCStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if !knownQCStatuses[req.Status] {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("unknown qc status %q", req.Status))
	}
	images, err := h.store.GetGeneratedImagesByQCStatus(c.Request.Context(), req.Status)
	if err != nil {
		return nil, err
	}
	return gin.H{"success": true, "images": images}, nil
}

type updateImageQCStatusRequest struct {
	ImageId int64  `json:"imageId"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) updateImageQCStatus(c *gin.Context) (interface{}, error) {
	var req updateImageQCStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if !knownQCStatuses[req.Status] {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("unknown qc status %q", req.Status))
	}
	if err := h.store.UpdateQCStatus(c.Request.Context(), req.ImageId, req.Status, req.Reason); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

type deleteImageRequest struct {
	ImageId int64 `json:"imageId"`
}

func (h *Handler) deleteImage(c *gin.Context) (interface{}, error) {
	var req deleteImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if err := h.store.DeleteGeneratedImage(c.Request.Context(), req.ImageId); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

// RetryBatchRequest is the failed-image:retry-batch payload.
type RetryBatchRequest struct {
	ImageIds            []int64                 `json:"imageIds"`
	UseOriginalSettings bool                    `json:"useOriginalSettings"`
	ModifiedSettings    *retry.ModifiedSettings `json:"modifiedSettings,omitempty"`
}

func (h *Handler) retryBatch(c *gin.Context) (interface{}, error) {
	var req RetryBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if len(req.ImageIds) == 0 {
		return nil, commonerrors.NewBadRequest("No image IDs provided")
	}

	// Replaying original settings only makes sense within one execution: the
	// settings resolve through each execution's configuration snapshot.
	if req.UseOriginalSettings {
		images, err := h.store.GetGeneratedImagesByIds(c.Request.Context(), req.ImageIds)
		if err != nil {
			return nil, err
		}
		var executionId int64
		for _, image := range images {
			if executionId == 0 {
				executionId = image.ExecutionId
				continue
			}
			if image.ExecutionId != executionId {
				return nil, commonerrors.NewBadRequest("Cannot retry images from different jobs with the original settings")
			}
		}
	}

	job, err := h.retry.AddBatchRetryJob(c.Request.Context(), req.ImageIds, req.UseOriginalSettings, req.ModifiedSettings)
	if err != nil {
		return nil, err
	}
	return gin.H{"success": true, "job": job}, nil
}

func (h *Handler) retryStatus(c *gin.Context) (interface{}, error) {
	queued, completed, processing := h.retry.QueueStatus()
	return gin.H{
		"success":    true,
		"queued":     queued,
		"completed":  completed,
		"processing": processing,
	}, nil
}

func (h *Handler) clearRetries(c *gin.Context) (interface{}, error) {
	h.retry.ClearCompletedJobs()
	return gin.H{"success": true}, nil
}
