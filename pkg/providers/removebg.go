/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"

	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/utils/fileutil"
	"github.com/ascensum/gen-image-factory/pkg/utils/httpclient"
)

// Remover calls the remove.bg API to cut out image backgrounds. It satisfies
// processor.BackgroundRemover.
type Remover struct {
	endpoint   string
	httpClient httpclient.Interface
}

var (
	removerOnce sync.Once
	remover     *Remover
)

// NewRemover returns the shared remove.bg client.
func NewRemover() *Remover {
	removerOnce.Do(func() {
		remover = &Remover{
			endpoint:   commonconfig.GetRemoveBgEndpoint(),
			httpClient: httpclient.NewHttpClient(),
		}
	})
	return remover
}

// RemoveBackground uploads srcPath and writes the returned cutout to dstPath.
func (r *Remover) RemoveBackground(ctx context.Context, srcPath, dstPath string) error {
	key := RemoveBgKey()
	if key == "" {
		return commonerrors.NewBadRequest("remove.bg API key is not configured")
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image_file", filepath.Base(srcPath))
	if err != nil {
		return err
	}
	if _, err = io.Copy(part, src); err != nil {
		return err
	}
	if err = writer.WriteField("size", "auto"); err != nil {
		return err
	}
	if err = writer.WriteField("format", "png"); err != nil {
		return err
	}
	if err = writer.Close(); err != nil {
		return err
	}

	req, err := httpclient.BuildRequest(ctx, r.endpoint, "POST", &body,
		"Content-Type", writer.FormDataContentType(),
		"X-Api-Key", key)
	if err != nil {
		return err
	}
	rsp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	if !rsp.IsSuccess() {
		return fmt.Errorf("remove.bg request failed with status %d: %s", rsp.StatusCode, string(rsp.Body))
	}

	if err = fileutil.EnsureDir(filepath.Dir(dstPath)); err != nil {
		return err
	}
	return os.WriteFile(dstPath, rsp.Body, 0o644)
}
