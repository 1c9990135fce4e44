/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
)

const JobConfigurationKind = "JobConfiguration"

// UpsertJobConfiguration creates or updates a saved job configuration.
// An empty id gets a generated one; the assigned id is returned.
func (c *Client) UpsertJobConfiguration(ctx context.Context, record *JobConfigurationRecord) (string, error) {
	if record == nil {
		return "", commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return "", err
	}

	if record.Id == "" {
		record.Id = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return "", err
	}
	return record.Id, nil
}

// GetJobConfiguration retrieves a saved job configuration by id.
func (c *Client) GetJobConfiguration(ctx context.Context, id string) (*JobConfigurationRecord, error) {
	if id == "" {
		return nil, commonerrors.NewBadRequest("configurationId is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return nil, err
	}

	var record JobConfigurationRecord
	err = db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commonerrors.NewNotFound(JobConfigurationKind, id)
		}
		return nil, err
	}
	return &record, nil
}

// ListJobConfigurations lists saved job configurations, newest first.
func (c *Client) ListJobConfigurations(ctx context.Context, limit, offset int) ([]*JobConfigurationRecord, error) {
	db, err := c.GetGormDB()
	if err != nil {
		return nil, err
	}

	var records []*JobConfigurationRecord
	query := db.WithContext(ctx).Order("updated_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err = query.Find(&records).Error
	return records, err
}

// DeleteJobConfiguration removes a saved job configuration.
func (c *Client) DeleteJobConfiguration(ctx context.Context, id string) error {
	if id == "" {
		return commonerrors.NewBadRequest("configurationId is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&JobConfigurationRecord{}).Error
}
