/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package providers

import (
	"os"
	"strings"
)

// Provider credentials travel through the process environment. The engine
// seeds these variables from the job configuration before a run starts.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvRunwareKey  = "RUNWARE_API_KEY"
	EnvRemoveBgKey = "REMOVE_BG_API_KEY"
	EnvDebugMode   = "DEBUG_MODE"
)

// OpenAIKey returns the OpenAI credential from the environment.
func OpenAIKey() string {
	return os.Getenv(EnvOpenAIKey)
}

// RunwareKey returns the Runware credential from the environment.
func RunwareKey() string {
	return os.Getenv(EnvRunwareKey)
}

// RemoveBgKey returns the remove.bg credential from the environment.
func RemoveBgKey() string {
	return os.Getenv(EnvRemoveBgKey)
}

// IsDebugMode reports whether verbose logging was requested via environment.
func IsDebugMode() bool {
	return strings.EqualFold(os.Getenv(EnvDebugMode), "true")
}
