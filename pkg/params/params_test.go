/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package params

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func TestClampVariations(t *testing.T) {
	testCases := []struct {
		name        string
		requested   int
		generations int
		expect      int
	}{
		{name: "budget caps large batch", requested: 50, generations: 1000, expect: 10},
		{name: "ceiling holds for single generation", requested: 20, generations: 1, expect: 20},
		{name: "ceiling trims oversized request", requested: 100, generations: 1, expect: 20},
		{name: "small request untouched", requested: 3, generations: 10, expect: 3},
		{name: "zero request becomes one", requested: 0, generations: 5, expect: 1},
		{name: "zero generations treated as one", requested: 5, generations: 0, expect: 5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, ClampVariations(tc.requested, tc.generations))
		})
	}
}

func writeKeywordFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.txt")
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadKeywordsPlainList(t *testing.T) {
	path := writeKeywordFile(t, "sunset\n\n  mountain lake  \nforest\n")
	keywords, err := LoadKeywords(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, keywords, []string{"sunset", "mountain lake", "forest"})
}

func TestLoadKeywordsCsvHeader(t *testing.T) {
	path := writeKeywordFile(t, "id,keyword,weight\n1,sunset,3\n2,forest,1\n")
	keywords, err := LoadKeywords(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, keywords, []string{"sunset", "forest"})
}

func TestLoadKeywordsTsvFallsBackToFirstColumn(t *testing.T) {
	path := writeKeywordFile(t, "subject\tnotes\nsunset\twarm light\nforest\tmisty\n")
	keywords, err := LoadKeywords(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, keywords, []string{"sunset", "forest"})
}

func TestLoadKeywordsEmptyFile(t *testing.T) {
	path := writeKeywordFile(t, "\n\n")
	_, err := LoadKeywords(path)
	assert.Assert(t, err != nil)
}

func TestPickSequential(t *testing.T) {
	keywords := []string{"a", "b", "c"}
	assert.Equal(t, "a", Pick(keywords, true, 0))
	assert.Equal(t, "c", Pick(keywords, true, 2))
	assert.Equal(t, "b", Pick(keywords, false, 4))
}

func TestPickWithoutRandom(t *testing.T) {
	keywords := []string{"a", "b", "c"}
	assert.Equal(t, "a", Pick(keywords, false, -1))
	assert.Equal(t, "", Pick(nil, false, -1))
}

func TestLoadPromptFileMissing(t *testing.T) {
	assert.Equal(t, "", LoadPromptFile(""))
	assert.Equal(t, "", LoadPromptFile(filepath.Join(t.TempDir(), "absent.txt")))
}

func TestNormalizeAspectRatios(t *testing.T) {
	assert.DeepEqual(t, NormalizeAspectRatios("16:9, 1:1 ,"), []string{"16:9", "1:1"})
	assert.DeepEqual(t, NormalizeAspectRatios([]interface{}{"4:5", " 3:2 ", 7}), []string{"4:5", "3:2"})
	assert.DeepEqual(t, NormalizeAspectRatios([]string{"2:3"}), []string{"2:3"})
	assert.Assert(t, NormalizeAspectRatios(nil) == nil)
	assert.Assert(t, NormalizeAspectRatios(42) == nil)
}

func TestPickAspectRatio(t *testing.T) {
	ratios := []string{"16:9", "1:1"}
	assert.Equal(t, "16:9", PickAspectRatio(ratios, 0))
	assert.Equal(t, "1:1", PickAspectRatio(ratios, 1))
	assert.Equal(t, "16:9", PickAspectRatio(ratios, 2))
	assert.Equal(t, "", PickAspectRatio(nil, 0))
}