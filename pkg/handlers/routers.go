/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"
)

// InitRouters registers the RPC surface: the whitelisted invoke channel and
// the outbound event feed.
func InitRouters(e *gin.Engine, h *Handler) {
	group := e.Group("/api/v1")
	{
		group.POST("/invoke/:channel", h.Invoke)
		group.GET("/events", h.Events)
	}
}
