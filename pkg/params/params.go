/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package params

import (
	"encoding/csv"
	"math/rand"
	"os"
	"strings"

	"k8s.io/klog/v2"

	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/utils/stringutil"
)

const (
	// MaxVariations caps the per-generation variation count.
	MaxVariations = 20

	// MaxTotalImages caps the images a single job may produce.
	MaxTotalImages = 10000
)

// ClampVariations bounds the requested variation count so a job can never
// exceed the total image budget or the per-generation ceiling.
func ClampVariations(requested, generations int) int {
	if generations <= 0 {
		generations = 1
	}
	v := requested
	if v < 1 {
		v = 1
	}
	if limit := MaxTotalImages / generations; v > limit {
		v = limit
	}
	if v > MaxVariations {
		v = MaxVariations
	}
	if v < 1 {
		v = 1
	}
	return v
}

// LoadKeywords reads the keyword source file. Delimited files with a header
// row contribute their "keyword" column (first column when absent); plain
// files contribute one keyword per line.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	firstLine := ""
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			firstLine = line
			break
		}
	}
	switch {
	case strings.Contains(firstLine, "\t"):
		return parseDelimited(text, '\t')
	case strings.Contains(firstLine, ","):
		return parseDelimited(text, ',')
	}

	keywords := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	if len(keywords) == 0 {
		return nil, commonerrors.NewBadRequest("the keyword file is empty")
	}
	return keywords, nil
}

// parseDelimited extracts the keyword column of a csv/tsv document.
func parseDelimited(text string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, commonerrors.NewBadRequest("the keyword file has a header but no rows")
	}

	column := 0
	for i, name := range records[0] {
		if stringutil.StrCaseEqual(strings.TrimSpace(name), "keyword") {
			column = i
			break
		}
	}
	keywords := make([]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if column >= len(record) {
			continue
		}
		if trimmed := strings.TrimSpace(record[column]); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	if len(keywords) == 0 {
		return nil, commonerrors.NewBadRequest("the keyword file has no usable rows")
	}
	return keywords, nil
}

// Pick selects the keyword for one generation. A non-negative sequential
// index forces deterministic round-robin selection, otherwise the choice
// follows the random flag.
func Pick(keywords []string, random bool, sequentialIndex int) string {
	if len(keywords) == 0 {
		return ""
	}
	if sequentialIndex >= 0 {
		return keywords[sequentialIndex%len(keywords)]
	}
	if random {
		return keywords[rand.Intn(len(keywords))]
	}
	return keywords[0]
}

// LoadPromptFile reads an optional prompt file. A missing or unreadable file
// yields an empty prompt, the job continues without it.
func LoadPromptFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		klog.InfoS("prompt file is not readable, continuing without it", "path", path, "err", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

// NormalizeAspectRatios accepts the dimensions field in either of its wire
// shapes, a csv string or an array, and returns the cleaned list.
func NormalizeAspectRatios(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return stringutil.Split(v, ",")
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// PickAspectRatio returns the ratio for the given generation index, cycling
// through the configured list.
func PickAspectRatio(ratios []string, index int) string {
	if len(ratios) == 0 {
		return ""
	}
	if index < 0 {
		index = 0
	}
	return ratios[index%len(ratios)]
}
