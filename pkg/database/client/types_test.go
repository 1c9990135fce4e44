/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"strings"
	"testing"

	"gotest.tools/assert"
)

func TestGenInsertJobExecutionCmd(t *testing.T) {
	execution := JobExecution{}
	cmd := generateCommand(execution, insertJobExecutionFormat, "id")
	assert.Assert(t, strings.HasPrefix(cmd, "INSERT INTO "+TJobExecution))
	assert.Assert(t, !strings.Contains(cmd, ":id"))
	assert.Assert(t, strings.Contains(cmd, ":config_snapshot"))
	assert.Assert(t, strings.Contains(cmd, "RETURNING id"))
}

func TestGenInsertGeneratedImageCmd(t *testing.T) {
	image := GeneratedImage{}
	cmd := generateCommand(image, insertGeneratedImageFormat, "id")
	assert.Assert(t, strings.HasPrefix(cmd, "INSERT INTO "+TGeneratedImage))
	assert.Assert(t, !strings.Contains(cmd, ":id"))
	assert.Assert(t, strings.Contains(cmd, ":image_mapping_id"))
}

func TestGetJobExecutionFieldTags(t *testing.T) {
	tags := GetJobExecutionFieldTags()
	configurationId := GetFieldTag(tags, "configurationId")
	assert.Equal(t, configurationId, "configuration_id")
	isRerun := GetFieldTag(tags, "isRerun")
	assert.Equal(t, isRerun, "is_rerun")
	snapshot := GetFieldTag(tags, "configSnapshot")
	assert.Equal(t, snapshot, "config_snapshot")
}

func TestGetGeneratedImageFieldTags(t *testing.T) {
	tags := GetGeneratedImageFieldTags()
	mappingId := GetFieldTag(tags, "imageMappingId")
	assert.Equal(t, mappingId, "image_mapping_id")
	qcStatus := GetFieldTag(tags, "qcStatus")
	assert.Equal(t, qcStatus, "qc_status")
	finalPath := GetFieldTag(tags, "finalImagePath")
	assert.Equal(t, finalPath, "final_image_path")
}
