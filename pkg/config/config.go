/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// SetValue sets a configuration value for the specified key.
func SetValue(key, value string) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified file path.
func LoadConfig(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getFromFile(configPath, item string) string {
	path := getString(configPath, "")
	data, err := os.ReadFile(filepath.Join(path, item))
	if err != nil {
		return ""
	}
	key := string(data)
	return strings.TrimRight(key, "\r\n")
}

// IsCryptoEnable returns whether encryption is enabled.
func IsCryptoEnable() bool {
	return getBool(cryptoEnable, true)
}

// GetCryptoKey returns the encryption key.
func GetCryptoKey() string {
	return getFromFile(cryptoSecretPath, "key")
}

// GetServerPort returns the runner API port.
func GetServerPort() int {
	return getInt(serverPort, 0)
}

// IsDebugMode returns whether debug logging is enabled by configuration.
func IsDebugMode() bool {
	return getBool(debugMode, false)
}

// GetDBHost returns the database host address.
func GetDBHost() string {
	return getFromFile(dbSecretPath, "host")
}

// GetDBPort returns the database port number.
func GetDBPort() int {
	data := getFromFile(dbSecretPath, "port")
	n, err := strconv.Atoi(data)
	if err != nil {
		return 0
	}
	return n
}

// GetDBName returns the database name.
func GetDBName() string {
	return getFromFile(dbSecretPath, "dbname")
}

// GetDBUser returns the database username.
func GetDBUser() string {
	return getFromFile(dbSecretPath, "user")
}

// GetDBPassword returns the database password.
func GetDBPassword() string {
	return getFromFile(dbSecretPath, "password")
}

// GetDBSslMode returns the database SSL mode.
func GetDBSslMode() string {
	return getString(dbSslMode, "require")
}

// GetDBMaxOpenConns returns the maximum number of open database connections.
func GetDBMaxOpenConns() int {
	return getInt(dbMaxOpenConns, 100)
}

// GetDBMaxIdleConns returns the maximum number of idle database connections.
func GetDBMaxIdleConns() int {
	return getInt(dbMaxIdleConns, 10)
}

// GetDBMaxLifetimeSecond returns the maximum lifetime of database connections in seconds.
func GetDBMaxLifetimeSecond() int {
	return getInt(dbMaxLifetime, 600)
}

// GetDBMaxIdleTimeSecond returns the maximum idle time of database connections in seconds.
func GetDBMaxIdleTimeSecond() int {
	return getInt(dbMaxIdleTimeSecond, 60)
}

// GetDBConnectTimeoutSecond returns the database connection timeout in seconds.
func GetDBConnectTimeoutSecond() int {
	return getInt(dbConnectTimeoutSecond, 10)
}

// GetDBRequestTimeoutSecond returns the database request timeout in seconds.
func GetDBRequestTimeoutSecond() int {
	return getInt(dbRequestTimeoutSecond, 20)
}

// GetTempDirectory returns the fallback temp directory for generator output.
func GetTempDirectory() string {
	return getString(runnerTempDirectory, os.TempDir())
}

// GetOutputDirectory returns the fallback output directory for approved images.
func GetOutputDirectory() string {
	return getString(runnerOutputDirectory, "")
}

// GetQCSettleTimeoutSecond returns the timeout for the finalize QC settle wait.
func GetQCSettleTimeoutSecond() int {
	return getInt(runnerQCSettleTimeout, 120)
}

// GetQCSettlePollMs returns the poll interval for the finalize QC settle wait.
func GetQCSettlePollMs() int {
	return getInt(runnerQCSettlePollMs, 500)
}

// GetGenerationRetryAttempts returns the default per-generation retry attempts.
func GetGenerationRetryAttempts() int {
	return getInt(runnerRetryAttempts, 1)
}

// GetGenerationRetryBackoffMs returns the default per-generation retry backoff.
func GetGenerationRetryBackoffMs() int {
	return getInt(runnerRetryBackoffMs, 1000)
}

// GetPollTimeoutSecond returns the default polling timeout for provider calls.
func GetPollTimeoutSecond() int {
	return getInt(runnerPollTimeoutSecond, 600)
}

// GetOpenAIEndpoint returns the OpenAI chat completions endpoint.
func GetOpenAIEndpoint() string {
	return getString(openaiEndpoint, "https://api.openai.com/v1/chat/completions")
}

// GetOpenAIModel returns the fallback OpenAI model name.
func GetOpenAIModel() string {
	return getString(openaiModel, "gpt-4o")
}

// GetRunwareEndpoint returns the Runware task endpoint.
func GetRunwareEndpoint() string {
	return getString(runwareEndpoint, "https://api.runware.ai/v1")
}

// GetRunwarePollIntervalMs returns the poll interval for Runware task status.
func GetRunwarePollIntervalMs() int {
	return getInt(runwarePollMs, 2000)
}

// GetRemoveBgEndpoint returns the remove.bg API endpoint.
func GetRemoveBgEndpoint() string {
	return getString(removeBgEndpoint, "https://api.remove.bg/v1.0/removebg")
}

// GetKeyringService returns the service name used for the native credential store.
func GetKeyringService() string {
	return getString(keyringService, "gen-image-factory")
}
