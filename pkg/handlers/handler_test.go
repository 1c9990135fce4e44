/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/assert"

	"github.com/ascensum/gen-image-factory/pkg/database/client"
	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/events"
	"github.com/ascensum/gen-image-factory/pkg/rerun"
	"github.com/ascensum/gen-image-factory/pkg/retry"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

type fakeEngine struct {
	running bool
	started []*engine.StartRequest
	stopped bool
	events  *events.Broadcaster
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: events.NewBroadcaster()}
}

func (e *fakeEngine) StartJob(req *engine.StartRequest) (int64, error) {
	if e.running {
		return 0, commonerrors.NewJobAlreadyRunning("Another job is currently running")
	}
	e.started = append(e.started, req)
	return int64(len(e.started)), nil
}

func (e *fakeEngine) StopJob() error      { e.stopped = true; return nil }
func (e *fakeEngine) ForceStopAll() error { e.stopped = true; return nil }
func (e *fakeEngine) Status() *engine.Status {
	return &engine.Status{Running: e.running}
}
func (e *fakeEngine) Progress() engine.Progress     { return engine.Progress{} }
func (e *fakeEngine) Logs(_ bool) []engine.LogEntry { return nil }
func (e *fakeEngine) Events() *events.Broadcaster   { return e.events }

type fakeRetry struct {
	jobs   []*retry.Job
	events *events.Broadcaster
}

func newFakeRetry() *fakeRetry {
	return &fakeRetry{events: events.NewBroadcaster()}
}

func (r *fakeRetry) AddBatchRetryJob(_ context.Context, imageIds []int64, useOriginalSettings bool, modified *retry.ModifiedSettings) (*retry.Job, error) {
	if len(imageIds) == 0 {
		return nil, commonerrors.NewBadRequest("No image IDs provided")
	}
	job := &retry.Job{Id: "job-1", ImageIds: imageIds, UseOriginalSettings: useOriginalSettings, Modified: modified, Status: retry.JobPending}
	r.jobs = append(r.jobs, job)
	return job, nil
}

func (r *fakeRetry) QueueStatus() ([]*retry.Job, []*retry.Job, bool) { return r.jobs, nil, false }
func (r *fakeRetry) ClearCompletedJobs()                             {}
func (r *fakeRetry) Stop()                                           {}
func (r *fakeRetry) Events() *events.Broadcaster                     { return r.events }

type fakeRerun struct {
	events *events.Broadcaster
}

func newFakeRerun() *fakeRerun {
	return &fakeRerun{events: events.NewBroadcaster()}
}

func (r *fakeRerun) RerunJobExecution(_ context.Context, executionId int64, _ *types.ApiKeys) (int64, error) {
	return executionId, nil
}

func (r *fakeRerun) RerunJobExecutions(_ context.Context, executionIds []int64, _ *types.ApiKeys) (*rerun.BulkRerunResult, error) {
	if len(executionIds) == 0 {
		return nil, commonerrors.NewBadRequest("executionIds is empty")
	}
	return &rerun.BulkRerunResult{Started: executionIds[0], Queued: executionIds[1:]}, nil
}

func (r *fakeRerun) Events() *events.Broadcaster { return r.events }

type fakeCredentials struct {
	secrets map[string]string
}

func (f *fakeCredentials) SetSecret(_ context.Context, account, secret string) error {
	f.secrets[account] = secret
	return nil
}

func (f *fakeCredentials) GetSecret(_ context.Context, account string) (string, error) {
	if secret, ok := f.secrets[account]; ok {
		return secret, nil
	}
	return "", commonerrors.NewNotFound("Credential", account)
}

func (f *fakeCredentials) DeleteSecret(_ context.Context, account string) error {
	delete(f.secrets, account)
	return nil
}

type fakeStore struct {
	images   map[int64]*client.GeneratedImage
	settings string
}

func newFakeStore() *fakeStore {
	return &fakeStore{images: make(map[int64]*client.GeneratedImage)}
}

func (s *fakeStore) GetGeneratedImagesByQCStatus(_ context.Context, status string) ([]*client.GeneratedImage, error) {
	var out []*client.GeneratedImage
	for _, image := range s.images {
		if image.QCStatus == status {
			out = append(out, image)
		}
	}
	return out, nil
}

func (s *fakeStore) GetGeneratedImagesByIds(_ context.Context, ids []int64) ([]*client.GeneratedImage, error) {
	var out []*client.GeneratedImage
	for _, id := range ids {
		if image, ok := s.images[id]; ok {
			out = append(out, image)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateQCStatus(_ context.Context, id int64, status, reason string) error {
	if image, ok := s.images[id]; ok {
		image.QCStatus = status
		return nil
	}
	return commonerrors.NewNotFound(client.GeneratedImageKind, fmt.Sprintf("%d", id))
}

func (s *fakeStore) DeleteGeneratedImage(_ context.Context, id int64) error {
	delete(s.images, id)
	return nil
}

func (s *fakeStore) GetJobExecution(_ context.Context, id int64) (*client.JobExecution, error) {
	return nil, commonerrors.NewNotFound(client.JobExecutionKind, fmt.Sprintf("%d", id))
}

func (s *fakeStore) SaveSettings(_ context.Context, payload string) error {
	s.settings = payload
	return nil
}

func (s *fakeStore) GetSettings(_ context.Context) (string, error) {
	return s.settings, nil
}

func newTestRouter(store *fakeStore) (*gin.Engine, *fakeEngine, *fakeRetry) {
	gin.SetMode(gin.ReleaseMode)
	eng := newFakeEngine()
	retryExec := newFakeRetry()
	h := NewHandler(eng, retryExec, newFakeRerun(), &fakeCredentials{secrets: map[string]string{}}, store)
	e := gin.New()
	InitRouters(e, h)
	return e, eng, retryExec
}

func invoke(t *testing.T, router *gin.Engine, channel string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NilError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoke/"+channel, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rsp := httptest.NewRecorder()
	router.ServeHTTP(rsp, req)

	var decoded map[string]interface{}
	assert.NilError(t, json.Unmarshal(rsp.Body.Bytes(), &decoded))
	return rsp, decoded
}

func TestInvokeUnknownChannelIsRejected(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore())
	rsp, decoded := invoke(t, router, "job:fly", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rsp.Code)
	assert.Equal(t, false, decoded["success"])
	assert.Assert(t, strings.Contains(decoded["error"].(string), "Invalid channel: job:fly"))
}

func TestInvokeJobStart(t *testing.T) {
	router, eng, _ := newTestRouter(newFakeStore())
	rsp, decoded := invoke(t, router, "job:start", gin.H{
		"config": gin.H{
			"apiKeys":   gin.H{"openai": "sk", "runware": "rw"},
			"filePaths": gin.H{"outputDirectory": "/tmp/out"},
		},
	})
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, 1, len(eng.started))
	assert.Equal(t, -1, eng.started[0].ForceSequentialIndex)
	assert.Equal(t, "sk", eng.started[0].Config.Keys().OpenAI)
}

func TestInvokeJobStartWhileBusy(t *testing.T) {
	store := newFakeStore()
	router, eng, _ := newTestRouter(store)
	eng.running = true
	rsp, decoded := invoke(t, router, "job:start", gin.H{"config": gin.H{}})
	assert.Equal(t, http.StatusConflict, rsp.Code)
	assert.Equal(t, false, decoded["success"])
	assert.Assert(t, strings.Contains(decoded["error"].(string), "Another job is currently running"))
}

func TestRetryBatchRejectsEmptyIds(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore())
	rsp, decoded := invoke(t, router, "failed-image:retry-batch", gin.H{"imageIds": []int64{}})
	assert.Equal(t, http.StatusBadRequest, rsp.Code)
	assert.Assert(t, strings.Contains(decoded["error"].(string), "No image IDs"))
}

func TestRetryBatchRejectsMixedExecutionsUnderOriginalSettings(t *testing.T) {
	store := newFakeStore()
	store.images[1] = &client.GeneratedImage{Id: 1, ImageMappingId: "a", ExecutionId: 10, QCStatus: types.QCFailed}
	store.images[2] = &client.GeneratedImage{Id: 2, ImageMappingId: "b", ExecutionId: 11, QCStatus: types.QCFailed}
	router, _, _ := newTestRouter(store)

	rsp, decoded := invoke(t, router, "failed-image:retry-batch", gin.H{
		"imageIds":            []int64{1, 2},
		"useOriginalSettings": true,
	})
	assert.Equal(t, http.StatusBadRequest, rsp.Code)
	assert.Assert(t, strings.Contains(strings.ToLower(decoded["error"].(string)), "different jobs"))
}

func TestRetryBatchAllowsMixedExecutionsWithModifiedSettings(t *testing.T) {
	store := newFakeStore()
	store.images[1] = &client.GeneratedImage{Id: 1, ImageMappingId: "a", ExecutionId: 10, QCStatus: types.QCFailed}
	store.images[2] = &client.GeneratedImage{Id: 2, ImageMappingId: "b", ExecutionId: 11, QCStatus: types.QCFailed}
	router, _, retryExec := newTestRouter(store)

	rsp, decoded := invoke(t, router, "failed-image:retry-batch", gin.H{
		"imageIds":            []int64{1, 2},
		"useOriginalSettings": false,
		"modifiedSettings":    gin.H{"processing": gin.H{"imageConvert": true, "convertFormat": "webp"}},
	})
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, 1, len(retryExec.jobs))
	assert.Assert(t, retryExec.jobs[0].Modified.Processing.ImageConvert)
}

func TestUpdateImageQCStatus(t *testing.T) {
	store := newFakeStore()
	store.images[5] = &client.GeneratedImage{Id: 5, ImageMappingId: "m", ExecutionId: 1, QCStatus: types.QCFailed}
	router, _, _ := newTestRouter(store)

	rsp, decoded := invoke(t, router, "generated-image:update-qc-status", gin.H{
		"imageId": 5,
		"status":  types.QCApproved,
	})
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, types.QCApproved, store.images[5].QCStatus)

	rsp, _ = invoke(t, router, "generated-image:update-qc-status", gin.H{
		"imageId": 5,
		"status":  "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, rsp.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newFakeStore()
	router, _, _ := newTestRouter(store)

	rsp, decoded := invoke(t, router, "save-settings", gin.H{
		"settings": gin.H{"theme": "dark"},
	})
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, true, decoded["success"])

	rsp, decoded = invoke(t, router, "get-settings", gin.H{})
	assert.Equal(t, http.StatusOK, rsp.Code)
	settings := decoded["settings"].(map[string]interface{})
	assert.Equal(t, "dark", settings["theme"])
}

func TestGetSettingsFallsBackToDefaults(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore())

	rsp, decoded := invoke(t, router, "get-settings", gin.H{})
	assert.Equal(t, http.StatusOK, rsp.Code)
	settings := decoded["settings"].(map[string]interface{})
	_, ok := settings["processing"]
	assert.Assert(t, ok)
}

func TestCredentialChannels(t *testing.T) {
	router, _, _ := newTestRouter(newFakeStore())

	rsp, _ := invoke(t, router, "credential:set", gin.H{"account": "openai", "secret": "sk-1"})
	assert.Equal(t, http.StatusOK, rsp.Code)

	rsp, decoded := invoke(t, router, "credential:get", gin.H{"account": "openai"})
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, "sk-1", decoded["secret"])

	rsp, _ = invoke(t, router, "credential:get", gin.H{"account": "missing"})
	assert.Equal(t, http.StatusNotFound, rsp.Code)
}

func TestStopChannels(t *testing.T) {
	router, eng, _ := newTestRouter(newFakeStore())
	rsp, decoded := invoke(t, router, "job:stop", gin.H{})
	assert.Equal(t, http.StatusOK, rsp.Code)
	assert.Equal(t, true, decoded["success"])
	assert.Assert(t, eng.stopped)
}
