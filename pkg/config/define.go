/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

// config keys
const (
	cryptoEnable     = "crypto.enable"
	cryptoSecretPath = "crypto.secret_path"

	serverPort = "server.port"

	debugMode = "debug.enable"

	dbSecretPath           = "db.secret_path"
	dbSslMode              = "db.ssl_mode"
	dbMaxOpenConns         = "db.max_open_conns"
	dbMaxIdleConns         = "db.max_idle_conns"
	dbMaxLifetime          = "db.max_lifetime_second"
	dbMaxIdleTimeSecond    = "db.max_idle_time_second"
	dbConnectTimeoutSecond = "db.connect_timeout_second"
	dbRequestTimeoutSecond = "db.request_timeout_second"

	runnerTempDirectory     = "runner.temp_directory"
	runnerOutputDirectory   = "runner.output_directory"
	runnerQCSettleTimeout   = "runner.qc_settle_timeout_second"
	runnerQCSettlePollMs    = "runner.qc_settle_poll_ms"
	runnerRetryAttempts     = "runner.generation_retry_attempts"
	runnerRetryBackoffMs    = "runner.generation_retry_backoff_ms"
	runnerPollTimeoutSecond = "runner.poll_timeout_second"

	openaiEndpoint   = "providers.openai.endpoint"
	openaiModel      = "providers.openai.model"
	runwareEndpoint  = "providers.runware.endpoint"
	runwarePollMs    = "providers.runware.poll_interval_ms"
	removeBgEndpoint = "providers.removebg.endpoint"

	keyringService = "credentials.keyring_service"
)
