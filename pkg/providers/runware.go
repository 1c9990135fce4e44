/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package providers

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/fileutil"
	"github.com/ascensum/gen-image-factory/pkg/utils/httpclient"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

const (
	defaultDimension = 1024
	dimensionStep    = 64

	// maxTopUpRounds bounds the extra submissions used to fill a batch that
	// came back short.
	maxTopUpRounds = 2

	downloadConcurrency = 4
)

// GenerateRequest describes one generation call to the image provider.
type GenerateRequest struct {
	Prompt      string
	Model       string
	Count       int
	Dimensions  string
	ProcessMode string
	Seed        int64
	Advanced    map[string]interface{}
	Settings    types.ProcessingSettings
	OutputDir   string
	PollTimeout time.Duration
}

// Generator talks to the Runware inference API.
type Generator struct {
	endpoint   string
	httpClient httpclient.Interface
}

var (
	generatorOnce sync.Once
	generator     *Generator
)

// NewGenerator returns the shared Runware client.
func NewGenerator() *Generator {
	generatorOnce.Do(func() {
		generator = &Generator{
			endpoint:   commonconfig.GetRunwareEndpoint(),
			httpClient: httpclient.NewHttpClient(),
		}
	})
	return generator
}

type inferenceResult struct {
	TaskUUID  string `json:"taskUUID"`
	ImageUUID string `json:"imageUUID"`
	ImageURL  string `json:"imageURL"`
	Seed      int64  `json:"seed"`
}

type inferenceResponse struct {
	Data   []inferenceResult `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GenerateImages submits an inference task, tops up short batches, and
// downloads every produced image into the request output directory.
// Slots that could not be filled are reported as failed items, not errors.
func (g *Generator) GenerateImages(ctx context.Context, req *GenerateRequest) (*GenerationResult, error) {
	if RunwareKey() == "" {
		return nil, commonerrors.NewBadRequest("Runware API key is not configured")
	}
	if req == nil || req.Prompt == "" {
		return nil, commonerrors.NewBadRequest("the generation prompt is empty")
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.PollTimeout)
		defer cancel()
	}

	var results []inferenceResult
	remaining := req.Count
	for round := 0; round <= maxTopUpRounds && remaining > 0; round++ {
		if round > 0 {
			klog.Infof("generation batch came back short, topping up %d image(s), round %d", remaining, round)
		}
		batch, err := g.submit(ctx, req, remaining)
		if err != nil {
			if len(results) == 0 {
				return nil, err
			}
			klog.ErrorS(err, "top-up submission failed, keeping partial batch")
			break
		}
		results = append(results, batch...)
		remaining = req.Count - len(results)
	}

	result := &GenerationResult{}
	items := make([]GeneratedItem, len(results))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(downloadConcurrency)
	var mu sync.Mutex
	for i := range results {
		i := i
		group.Go(func() error {
			item, err := g.download(groupCtx, req, &results[i])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, FailedItem{
					MappingId: uuid.NewString(),
					Stage:     failure.StageSaveFinal,
					Message:   err.Error(),
				})
				return nil
			}
			items[i] = *item
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].MappingId != "" {
			result.Items = append(result.Items, items[i])
		}
	}
	for i := len(results); i < req.Count; i++ {
		result.Failed = append(result.Failed, FailedItem{
			MappingId: uuid.NewString(),
			Stage:     failure.StageQC,
			Message:   "the provider returned fewer images than requested",
		})
	}
	return result, nil
}

// submit sends one imageInference task and returns the produced results.
func (g *Generator) submit(ctx context.Context, req *GenerateRequest, count int) ([]inferenceResult, error) {
	width, height := parseDimensions(req.Dimensions)
	task := map[string]interface{}{
		"taskType":       "imageInference",
		"taskUUID":       uuid.NewString(),
		"positivePrompt": req.Prompt,
		"model":          req.Model,
		"width":          width,
		"height":         height,
		"numberResults":  count,
	}
	if req.Seed > 0 {
		task["seed"] = req.Seed
	}
	for key, value := range req.Advanced {
		task[key] = value
	}

	rsp, err := g.httpClient.Post(ctx, g.endpoint, []interface{}{task},
		"Authorization", "Bearer "+RunwareKey())
	if err != nil {
		return nil, err
	}
	if !rsp.IsSuccess() {
		return nil, fmt.Errorf("generation request failed with status %d: %s", rsp.StatusCode, string(rsp.Body))
	}

	var response inferenceResponse
	if err = jsonutil.Unmarshal(rsp.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %v", err)
	}
	if len(response.Data) == 0 && len(response.Errors) > 0 {
		return nil, fmt.Errorf("generation rejected: %s", response.Errors[0].Message)
	}
	return response.Data, nil
}

// download fetches one produced image into the output directory.
func (g *Generator) download(ctx context.Context, req *GenerateRequest, res *inferenceResult) (*GeneratedItem, error) {
	if res.ImageURL == "" {
		return nil, fmt.Errorf("result %s carries no image url", res.TaskUUID)
	}
	rsp, err := g.httpClient.Get(ctx, res.ImageURL)
	if err != nil {
		return nil, err
	}
	if !rsp.IsSuccess() {
		return nil, fmt.Errorf("image download failed with status %d", rsp.StatusCode)
	}

	mappingId := res.ImageUUID
	if mappingId == "" {
		mappingId = uuid.NewString()
	}
	ext := strings.TrimPrefix(filepath.Ext(res.ImageURL), ".")
	if ext == "" || len(ext) > 4 {
		ext = "png"
	}
	if err = fileutil.EnsureDir(req.OutputDir); err != nil {
		return nil, err
	}
	path := filepath.Join(req.OutputDir, mappingId+"."+ext)
	if err = os.WriteFile(path, rsp.Body, 0o644); err != nil {
		return nil, err
	}
	return &GeneratedItem{
		OutputPath: path,
		MappingId:  mappingId,
		Prompt:     req.Prompt,
		Seed:       res.Seed,
		Settings:   req.Settings,
	}, nil
}

// parseDimensions accepts "WxH" pixel sizes or "a:b" aspect ratios. Ratios
// are scaled to roughly a one-megapixel canvas rounded to the provider's
// 64-pixel grid.
func parseDimensions(dim string) (int, int) {
	dim = strings.TrimSpace(dim)
	if dim == "" {
		return defaultDimension, defaultDimension
	}
	if parts := strings.SplitN(strings.ToLower(dim), "x", 2); len(parts) == 2 {
		w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return snap(w), snap(h)
		}
	}
	if parts := strings.SplitN(dim, ":", 2); len(parts) == 2 {
		a, errA := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errA == nil && errB == nil && a > 0 && b > 0 {
			area := float64(defaultDimension * defaultDimension)
			w := math.Sqrt(area * a / b)
			h := area / w
			return snap(int(w)), snap(int(h))
		}
	}
	return defaultDimension, defaultDimension
}

// snap rounds a dimension to the nearest supported 64-pixel step.
func snap(v int) int {
	if v < dimensionStep {
		return dimensionStep
	}
	return ((v + dimensionStep/2) / dimensionStep) * dimensionStep
}
