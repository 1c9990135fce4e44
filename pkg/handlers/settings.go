/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

func (h *Handler) getSettings(c *gin.Context) (interface{}, error) {
	payload, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		return nil, err
	}
	if payload == "" {
		// Nothing saved yet: hand back the built-in defaults.
		return gin.H{"success": true, "settings": gin.H{
			"processing": types.DefaultProcessingSettings(),
		}}, nil
	}
	settings := map[string]interface{}{}
	if err = jsonutil.Unmarshal([]byte(payload), &settings); err != nil {
		return nil, commonerrors.NewInternalError("the stored settings payload is unparseable")
	}
	return gin.H{"success": true, "settings": settings}, nil
}

type saveSettingsRequest struct {
	Settings json.RawMessage `json:"settings"`
}

func (h *Handler) saveSettings(c *gin.Context) (interface{}, error) {
	var req saveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if len(req.Settings) == 0 {
		return nil, commonerrors.NewBadRequest("settings is empty")
	}
	if !json.Valid(req.Settings) {
		return nil, commonerrors.NewBadRequest("settings is not valid JSON")
	}
	if err := h.store.SaveSettings(c.Request.Context(), string(req.Settings)); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

type credentialRequest struct {
	Account string `json:"account"`
	Secret  string `json:"secret,omitempty"`
}

func (h *Handler) getCredential(c *gin.Context) (interface{}, error) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	secret, err := h.credentials.GetSecret(c.Request.Context(), req.Account)
	if err != nil {
		return nil, err
	}
	return gin.H{"success": true, "secret": secret}, nil
}

func (h *Handler) setCredential(c *gin.Context) (interface{}, error) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if err := h.credentials.SetSecret(c.Request.Context(), req.Account, req.Secret); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

func (h *Handler) deleteCredential(c *gin.Context) (interface{}, error) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	if err := h.credentials.DeleteSecret(c.Request.Context(), req.Account); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}
