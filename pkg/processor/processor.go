/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"

	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/fileutil"
)

// WorkDirName is the sibling directory that holds intermediate artifacts.
const WorkDirName = "temp_processing"

// BackgroundRemover strips the background from srcPath and writes the cutout
// to dstPath.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, srcPath, dstPath string) error
}

// Result reports the processed artifact and which stages were skipped after
// a soft failure.
type Result struct {
	Path         string
	SoftFailures []failure.Stage
}

// Failed reports whether the given stage failed softly.
func (r *Result) Failed(stage failure.Stage) bool {
	for _, s := range r.SoftFailures {
		if s == stage {
			return true
		}
	}
	return false
}

// Pipeline runs the post-processing recipe on generated images. The remover
// is optional; when nil the remove-background stage is skipped.
type Pipeline struct {
	Remover BackgroundRemover
}

// ProcessImage applies the recipe stages in order: remove background, trim,
// enhancement, convert. A stage listed in the fail options aborts processing
// with a stage-tagged error; any other stage failure falls back to the
// previous artifact and is reported as soft.
func (p *Pipeline) ProcessImage(ctx context.Context, srcPath string, settings types.ProcessingSettings, opts failure.FailOptions) (*Result, error) {
	workDir := filepath.Join(filepath.Dir(srcPath), WorkDirName)
	if err := fileutil.EnsureDir(workDir); err != nil {
		return nil, failure.NewStageError(failure.StageConvert, err)
	}

	result := &Result{Path: srcPath}
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))

	runStage := func(stage failure.Stage, dst string, fn func(src, dst string) error) error {
		if err := ctx.Err(); err != nil {
			return failure.NewStageError(stage, err)
		}
		if err := fn(result.Path, dst); err != nil {
			if opts.IsHard(stage) {
				return failure.NewStageError(stage, err)
			}
			klog.InfoS("post-processing stage failed softly, keeping previous artifact",
				"stage", stage, "image", srcPath, "err", err)
			result.SoftFailures = append(result.SoftFailures, stage)
			return nil
		}
		result.Path = dst
		return nil
	}

	if settings.RemoveBg && p.Remover != nil {
		dst := filepath.Join(workDir, base+"_nobg.png")
		err := runStage(failure.StageRemoveBg, dst, func(src, dst string) error {
			return p.Remover.RemoveBackground(ctx, src, dst)
		})
		if err != nil {
			return nil, err
		}
	}

	if settings.TrimTransparent {
		dst := filepath.Join(workDir, base+"_trim.png")
		if err := runStage(failure.StageTrim, dst, TrimTransparent); err != nil {
			return nil, err
		}
	}

	if settings.ImageEnhancement {
		dst := filepath.Join(workDir, base+"_enhanced.png")
		err := runStage(failure.StageEnhancement, dst, func(src, dst string) error {
			return Enhance(src, dst, settings.SharpeningIntensity, settings.SaturationLevel)
		})
		if err != nil {
			return nil, err
		}
	}

	if settings.ImageConvert {
		ext := NormalizeFormat(settings.ConvertFormat)
		dst := filepath.Join(workDir, base+"."+ext)
		if err := runStage(failure.StageConvert, dst, Convert); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// CleanupWorkDir removes the intermediate-artifact directory next to srcPath.
// Best effort, failures are only logged.
func CleanupWorkDir(srcPath string) {
	workDir := filepath.Join(filepath.Dir(srcPath), WorkDirName)
	if err := os.RemoveAll(workDir); err != nil {
		klog.InfoS("failed to clean up processing dir", "dir", workDir, "err", err)
	}
}
