/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
)

// settingsRowId is the fixed id of the single settings row.
const settingsRowId = int64(1)

// SaveSettings stores the application settings payload, replacing any
// previous one.
func (c *Client) SaveSettings(ctx context.Context, payload string) error {
	if payload == "" {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return err
	}

	record := &SettingsRecord{
		Id:        settingsRowId,
		Payload:   payload,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// GetSettings returns the stored settings payload, or empty when none has
// been saved yet.
func (c *Client) GetSettings(ctx context.Context) (string, error) {
	db, err := c.GetGormDB()
	if err != nil {
		return "", err
	}

	var record SettingsRecord
	err = db.WithContext(ctx).Where("id = ?", settingsRowId).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return record.Payload, nil
}
