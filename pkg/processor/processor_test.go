/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package processor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"gotest.tools/assert"

	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

// writeTestImage writes a 10x10 png with an opaque 4x4 block at (3,3).
func writeTestImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 3; y < 7; y++ {
		for x := 3; x < 7; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	path := filepath.Join(dir, "sample.png")
	assert.NilError(t, imaging.Save(img, path))
	return path
}

func TestTrimTransparent(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir)
	dst := filepath.Join(dir, "trimmed.png")

	assert.NilError(t, TrimTransparent(src, dst))

	out, err := imaging.Open(dst)
	assert.NilError(t, err)
	assert.Equal(t, 4, out.Bounds().Dx())
	assert.Equal(t, 4, out.Bounds().Dy())
}

func TestTrimTransparentFullyTransparent(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	src := filepath.Join(dir, "empty.png")
	assert.NilError(t, imaging.Save(img, src))

	err := TrimTransparent(src, filepath.Join(dir, "out.png"))
	assert.ErrorContains(t, err, "fully transparent")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir)
	dst := filepath.Join(dir, "sample.jpg")

	assert.NilError(t, Convert(src, dst))
	_, err := os.Stat(dst)
	assert.NilError(t, err)
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "jpg", NormalizeFormat("jpeg"))
	assert.Equal(t, "jpg", NormalizeFormat("JPG"))
	assert.Equal(t, "webp", NormalizeFormat("webp"))
	assert.Equal(t, "png", NormalizeFormat(""))
	assert.Equal(t, "png", NormalizeFormat("unknown"))
}

type failingRemover struct{}

func (failingRemover) RemoveBackground(_ context.Context, _, _ string) error {
	return fmt.Errorf("status 402")
}

func TestProcessImageSoftRemoveBgFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir)

	pipeline := &Pipeline{Remover: failingRemover{}}
	settings := types.ProcessingSettings{RemoveBg: true}

	result, err := pipeline.ProcessImage(context.Background(), src, settings, failure.FailOptions{})
	assert.NilError(t, err)
	assert.Equal(t, src, result.Path)
	assert.Assert(t, result.Failed(failure.StageRemoveBg))
}

func TestProcessImageHardRemoveBgFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir)

	pipeline := &Pipeline{Remover: failingRemover{}}
	settings := types.ProcessingSettings{RemoveBg: true}
	opts := failure.FailOptions{Enabled: true, Steps: []string{"remove_bg"}}

	_, err := pipeline.ProcessImage(context.Background(), src, settings, opts)
	assert.Assert(t, err != nil)
	assert.Equal(t, "processing_failed:remove_bg", failure.ReasonForError(err))
}

func TestProcessImageFullRecipe(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir)

	pipeline := &Pipeline{}
	settings := types.ProcessingSettings{
		TrimTransparent:     true,
		ImageEnhancement:    true,
		SharpeningIntensity: 1.0,
		SaturationLevel:     1.2,
		ImageConvert:        true,
		ConvertFormat:       "jpg",
	}

	result, err := pipeline.ProcessImage(context.Background(), src, settings, failure.FailOptions{})
	assert.NilError(t, err)
	assert.Equal(t, 0, len(result.SoftFailures))
	assert.Equal(t, ".jpg", filepath.Ext(result.Path))
	assert.Equal(t, WorkDirName, filepath.Base(filepath.Dir(result.Path)))
}
