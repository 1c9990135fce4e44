/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package credentials

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
	"k8s.io/klog/v2"

	"github.com/ascensum/gen-image-factory/pkg/crypto"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
)

// ServiceName is the keyring service every credential is filed under.
const ServiceName = "gen-image-factory"

// Well-known credential accounts.
const (
	AccountOpenAI   = "openai"
	AccountRunware  = "runware"
	AccountRemoveBg = "remove-bg"
)

// FallbackStore is the encrypted database store used when the OS keyring is
// unavailable, typically on headless hosts.
type FallbackStore interface {
	UpsertCredential(ctx context.Context, service, account, secret string) error
	GetCredential(ctx context.Context, service, account string) (string, error)
	DeleteCredential(ctx context.Context, service, account string) error
}

// Manager stores provider credentials in the OS keyring, falling back to the
// encrypted database table when the keyring cannot be reached.
type Manager struct {
	fallback FallbackStore
	crypto   *crypto.Crypto
}

// NewManager wires a credential manager. fallback may be nil, in which case
// keyring failures surface to the caller.
func NewManager(fallback FallbackStore) *Manager {
	return &Manager{
		fallback: fallback,
		crypto:   crypto.NewCrypto(),
	}
}

// SetSecret stores one credential.
func (m *Manager) SetSecret(ctx context.Context, account, secret string) error {
	if account == "" {
		return commonerrors.NewBadRequest("account is empty")
	}
	if secret == "" {
		return commonerrors.NewBadRequest("secret is empty")
	}

	err := keyring.Set(ServiceName, account, secret)
	if err == nil {
		return nil
	}
	if m.fallback == nil {
		return commonerrors.NewInternalError(err.Error())
	}
	klog.InfoS("keyring unavailable, storing the credential in the database", "account", account, "err", err)

	encrypted, cerr := m.crypto.Encrypt([]byte(secret))
	if cerr != nil {
		return commonerrors.NewInternalError(cerr.Error())
	}
	return m.fallback.UpsertCredential(ctx, ServiceName, account, encrypted)
}

// GetSecret retrieves one credential. Absence is reported as a not-found
// error, never as an empty string.
func (m *Manager) GetSecret(ctx context.Context, account string) (string, error) {
	if account == "" {
		return "", commonerrors.NewBadRequest("account is empty")
	}

	secret, err := keyring.Get(ServiceName, account)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		klog.InfoS("keyring unavailable, reading the credential from the database", "account", account, "err", err)
	}
	if m.fallback == nil {
		return "", commonerrors.NewNotFound("Credential", account)
	}

	encrypted, ferr := m.fallback.GetCredential(ctx, ServiceName, account)
	if ferr != nil {
		return "", ferr
	}
	secret, err = m.crypto.Decrypt(encrypted)
	if err != nil {
		return "", commonerrors.NewInternalError(err.Error())
	}
	return secret, nil
}

// DeleteSecret removes one credential from both stores.
func (m *Manager) DeleteSecret(ctx context.Context, account string) error {
	if account == "" {
		return commonerrors.NewBadRequest("account is empty")
	}

	kerr := keyring.Delete(ServiceName, account)
	if kerr != nil && !errors.Is(kerr, keyring.ErrNotFound) {
		klog.InfoS("failed to delete the credential from the keyring", "account", account, "err", kerr)
	}
	if m.fallback != nil {
		return m.fallback.DeleteCredential(ctx, ServiceName, account)
	}
	if kerr != nil && !errors.Is(kerr, keyring.ErrNotFound) {
		return commonerrors.NewInternalError(kerr.Error())
	}
	return nil
}
