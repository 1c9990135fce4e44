/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

type rerunRequest struct {
	ExecutionId int64          `json:"executionId"`
	ApiKeys     *types.ApiKeys `json:"apiKeys,omitempty"`
}

func (h *Handler) rerunExecution(c *gin.Context) (interface{}, error) {
	var req rerunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if req.ExecutionId <= 0 {
		return nil, commonerrors.NewBadRequest("executionId is required")
	}
	executionId, err := h.rerun.RerunJobExecution(c.Request.Context(), req.ExecutionId, req.ApiKeys)
	if err != nil {
		return nil, err
	}
	return gin.H{"success": true, "executionId": executionId}, nil
}

type rerunBatchRequest struct {
	ExecutionIds []int64        `json:"executionIds"`
	ApiKeys      *types.ApiKeys `json:"apiKeys,omitempty"`
}

func (h *Handler) rerunExecutions(c *gin.Context) (interface{}, error) {
	var req rerunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	result, err := h.rerun.RerunJobExecutions(c.Request.Context(), req.ExecutionIds, req.ApiKeys)
	if err != nil {
		return nil, err
	}
	return gin.H{"success": true, "result": result}, nil
}
