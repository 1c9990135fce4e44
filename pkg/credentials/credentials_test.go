/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package credentials

import (
	"context"
	"fmt"
	"testing"

	"github.com/zalando/go-keyring"
	"gotest.tools/assert"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
)

type memoryFallback struct {
	secrets map[string]string
}

func newMemoryFallback() *memoryFallback {
	return &memoryFallback{secrets: make(map[string]string)}
}

func (f *memoryFallback) key(service, account string) string {
	return service + "/" + account
}

func (f *memoryFallback) UpsertCredential(_ context.Context, service, account, secret string) error {
	f.secrets[f.key(service, account)] = secret
	return nil
}

func (f *memoryFallback) GetCredential(_ context.Context, service, account string) (string, error) {
	if secret, ok := f.secrets[f.key(service, account)]; ok {
		return secret, nil
	}
	return "", commonerrors.NewNotFound("Credential", account)
}

func (f *memoryFallback) DeleteCredential(_ context.Context, service, account string) error {
	delete(f.secrets, f.key(service, account))
	return nil
}

func TestSecretRoundTripThroughKeyring(t *testing.T) {
	keyring.MockInit()
	m := NewManager(nil)
	ctx := context.Background()

	assert.NilError(t, m.SetSecret(ctx, AccountOpenAI, "sk-round-trip"))
	secret, err := m.GetSecret(ctx, AccountOpenAI)
	assert.NilError(t, err)
	assert.Equal(t, "sk-round-trip", secret)

	assert.NilError(t, m.DeleteSecret(ctx, AccountOpenAI))
	_, err = m.GetSecret(ctx, AccountOpenAI)
	assert.Assert(t, err != nil)
}

func TestSecretFallsBackToDatabase(t *testing.T) {
	keyring.MockInitWithError(fmt.Errorf("no keyring on this host"))
	fallback := newMemoryFallback()
	m := NewManager(fallback)
	ctx := context.Background()

	assert.NilError(t, m.SetSecret(ctx, AccountRunware, "rw-secret"))
	assert.Equal(t, 1, len(fallback.secrets))

	secret, err := m.GetSecret(ctx, AccountRunware)
	assert.NilError(t, err)
	assert.Equal(t, "rw-secret", secret)

	assert.NilError(t, m.DeleteSecret(ctx, AccountRunware))
	_, err = m.GetSecret(ctx, AccountRunware)
	assert.Equal(t, commonerrors.NotFound, commonerrors.GetErrorCode(err))
}

func TestSecretValidation(t *testing.T) {
	keyring.MockInit()
	m := NewManager(nil)
	ctx := context.Background()

	err := m.SetSecret(ctx, "", "value")
	assert.Equal(t, commonerrors.BadRequest, commonerrors.GetErrorCode(err))
	err = m.SetSecret(ctx, AccountRemoveBg, "")
	assert.Equal(t, commonerrors.BadRequest, commonerrors.GetErrorCode(err))
	_, err = m.GetSecret(ctx, "")
	assert.Equal(t, commonerrors.BadRequest, commonerrors.GetErrorCode(err))
}
