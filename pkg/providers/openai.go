/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/httpclient"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

// VisionProvider talks to the OpenAI chat completions API for prompt
// generation, quality checks and metadata generation.
type VisionProvider struct {
	endpoint   string
	model      string
	httpClient httpclient.Interface
}

var (
	visionOnce sync.Once
	vision     *VisionProvider
)

// NewVisionProvider returns the shared vision client.
func NewVisionProvider() *VisionProvider {
	visionOnce.Do(func() {
		vision = &VisionProvider{
			endpoint:   commonconfig.GetOpenAIEndpoint(),
			model:      commonconfig.GetOpenAIModel(),
			httpClient: httpclient.NewHttpClient(),
		}
	})
	return vision
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one chat completion and returns the first choice content.
func (p *VisionProvider) complete(ctx context.Context, model string, messages []chatMessage) (string, error) {
	if OpenAIKey() == "" {
		return "", commonerrors.NewBadRequest("OpenAI API key is not configured")
	}
	if model == "" {
		model = p.model
	}
	rsp, err := p.httpClient.Post(ctx, p.endpoint, &chatRequest{Model: model, Messages: messages},
		"Authorization", "Bearer "+OpenAIKey())
	if err != nil {
		return "", err
	}
	if !rsp.IsSuccess() {
		return "", fmt.Errorf("vision request failed with status %d: %s", rsp.StatusCode, string(rsp.Body))
	}

	var response chatResponse
	if err = jsonutil.Unmarshal(rsp.Body, &response); err != nil {
		return "", fmt.Errorf("failed to decode vision response: %v", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("vision request rejected: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("vision response carries no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// GenerateParameters turns a keyword into a generation prompt, guided by the
// optional system prompt.
func (p *VisionProvider) GenerateParameters(ctx context.Context, model, systemPrompt, keyword string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	user := "Write a single image generation prompt."
	if keyword != "" {
		user = fmt.Sprintf("Write a single image generation prompt for the subject: %s", keyword)
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})
	return p.complete(ctx, model, messages)
}

type qcVerdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// RunQualityCheck judges the image at imagePath against the quality prompt.
// It expects a {"passed": bool, "reason": string} document and falls back to
// a pass/fail keyword scan when the model answered in prose.
func (p *VisionProvider) RunQualityCheck(ctx context.Context, model, qcPrompt, imagePath string) (bool, string, error) {
	content, err := p.completeWithImage(ctx, model, qcPrompt, imagePath,
		`Respond with a JSON object: {"passed": true|false, "reason": "..."}.`)
	if err != nil {
		return false, "", err
	}

	var verdict qcVerdict
	if err = jsonutil.Unmarshal([]byte(extractJSON(content)), &verdict); err == nil {
		return verdict.Passed, verdict.Reason, nil
	}
	lower := strings.ToLower(content)
	if strings.HasPrefix(lower, "pass") || strings.Contains(lower, "\"passed\": true") {
		return true, "", nil
	}
	klog.Infof("quality check answered in prose, treating as failed: %s", content)
	return false, content, nil
}

// GenerateMetadata produces the title/description/tags document for an image.
func (p *VisionProvider) GenerateMetadata(ctx context.Context, model, metadataPrompt, prompt, imagePath string) (*types.ImageMetadata, error) {
	instruction := `Respond with a JSON object: {"title": "...", "description": "...", "uploadTags": ["..."]}.`
	if prompt != "" {
		instruction = fmt.Sprintf("The image was generated from the prompt: %q. %s", prompt, instruction)
	}
	content, err := p.completeWithImage(ctx, model, metadataPrompt, imagePath, instruction)
	if err != nil {
		return nil, err
	}

	var metadata types.ImageMetadata
	if err = jsonutil.Unmarshal([]byte(extractJSON(content)), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document: %v", err)
	}
	return &metadata, nil
}

// completeWithImage sends a vision message carrying the image as a data url.
func (p *VisionProvider) completeWithImage(ctx context.Context, model, prompt, imagePath, instruction string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	text := strings.TrimSpace(prompt + "\n" + instruction)
	messages := []chatMessage{{
		Role: "user",
		Content: []map[string]interface{}{
			{"type": "text", "text": text},
			{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
		},
	}}
	return p.complete(ctx, model, messages)
}

// extractJSON strips markdown fences and surrounding prose from a model
// answer, keeping the outermost JSON object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
