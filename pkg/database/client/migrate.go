/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

const (
	createJobExecutionTable = `
CREATE TABLE IF NOT EXISTS job_execution (
    id                BIGSERIAL PRIMARY KEY,
    configuration_id  TEXT,
    label             TEXT,
    status            TEXT NOT NULL DEFAULT 'running',
    is_rerun          BOOLEAN NOT NULL DEFAULT FALSE,
    start_time        TIMESTAMPTZ,
    end_time          TIMESTAMPTZ,
    total_images      INTEGER NOT NULL DEFAULT 0,
    successful_images INTEGER NOT NULL DEFAULT 0,
    failed_images     INTEGER NOT NULL DEFAULT 0,
    error_message     TEXT,
    config_snapshot   TEXT
);`

	createGeneratedImageTable = `
CREATE TABLE IF NOT EXISTS generated_image (
    id                BIGSERIAL PRIMARY KEY,
    image_mapping_id  TEXT NOT NULL UNIQUE,
    execution_id      BIGINT NOT NULL REFERENCES job_execution(id) ON DELETE CASCADE,
    generation_prompt TEXT,
    seed_number       BIGINT,
    qc_status         TEXT NOT NULL DEFAULT 'pending',
    qc_reason         TEXT,
    temp_image_path   TEXT,
    final_image_path  TEXT,
    settings          TEXT,
    metadata          TEXT,
    create_time       TIMESTAMPTZ DEFAULT NOW(),
    update_time       TIMESTAMPTZ DEFAULT NOW()
);`

	createGeneratedImageIndexes = `
CREATE INDEX IF NOT EXISTS idx_generated_image_execution ON generated_image(execution_id);
CREATE INDEX IF NOT EXISTS idx_generated_image_qc_status ON generated_image(qc_status);`
)

// migrate creates the schema on startup. The json-payload entities go through
// gorm AutoMigrate, the hot-path tables are created with explicit DDL.
func (c *Client) migrate() error {
	if err := c.gorm.AutoMigrate(
		&JobConfigurationRecord{},
		&SettingsRecord{},
		&CredentialRecord{},
	); err != nil {
		return err
	}
	for _, ddl := range []string{
		createJobExecutionTable,
		createGeneratedImageTable,
		createGeneratedImageIndexes,
	} {
		if _, err := c.db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}
