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

const CredentialKind = "Credential"

// UpsertCredential stores an already-encrypted secret for a service/account
// pair, replacing any previous value.
func (c *Client) UpsertCredential(ctx context.Context, service, account, secret string) error {
	if service == "" || account == "" {
		return commonerrors.NewBadRequest("service or account is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return err
	}

	record := &CredentialRecord{
		Service:   service,
		Account:   account,
		Secret:    secret,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service"}, {Name: "account"}},
		UpdateAll: true,
	}).Create(record).Error
}

// GetCredential retrieves the encrypted secret for a service/account pair.
func (c *Client) GetCredential(ctx context.Context, service, account string) (string, error) {
	if service == "" || account == "" {
		return "", commonerrors.NewBadRequest("service or account is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return "", err
	}

	var record CredentialRecord
	err = db.WithContext(ctx).Where("service = ? AND account = ?", service, account).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", commonerrors.NewNotFound(CredentialKind, account)
		}
		return "", err
	}
	return record.Secret, nil
}

// DeleteCredential removes a stored secret.
func (c *Client) DeleteCredential(ctx context.Context, service, account string) error {
	if service == "" || account == "" {
		return commonerrors.NewBadRequest("service or account is empty")
	}
	db, err := c.GetGormDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Where("service = ? AND account = ?", service, account).
		Delete(&CredentialRecord{}).Error
}
