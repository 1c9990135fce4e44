/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package rerun

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gotest.tools/assert"

	"github.com/ascensum/gen-image-factory/pkg/database/client"
	dbutils "github.com/ascensum/gen-image-factory/pkg/database/utils"
	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

type fakeEngine struct {
	mu         sync.Mutex
	running    bool
	failNext   bool
	started    []*engine.StartRequest
	onComplete func(executionId int64, status string)
}

func (e *fakeEngine) StartJob(req *engine.StartRequest) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return 0, commonerrors.NewJobAlreadyRunning("Another job is currently running")
	}
	if e.failNext {
		e.failNext = false
		return 0, commonerrors.NewConfigInvalid("the OpenAI API key is required")
	}
	e.running = true
	e.started = append(e.started, req)
	return req.DatabaseExecutionId, nil
}

func (e *fakeEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *fakeEngine) SetCompletionCallback(fn func(executionId int64, status string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// complete finishes the in-flight job and fires the completion callback the
// way the real engine does.
func (e *fakeEngine) complete(executionId int64) {
	e.mu.Lock()
	e.running = false
	callback := e.onComplete
	e.mu.Unlock()
	if callback != nil {
		callback(executionId, types.ExecutionCompleted)
	}
}

func (e *fakeEngine) startedLabels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, req := range e.started {
		out = append(out, req.Label)
	}
	return out
}

type fakeStore struct {
	mu             sync.Mutex
	nextId         int64
	executions     map[int64]*client.JobExecution
	configurations map[string]*client.JobConfigurationRecord
	inserted       []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextId:         100,
		executions:     make(map[int64]*client.JobExecution),
		configurations: make(map[string]*client.JobConfigurationRecord),
	}
}

func (s *fakeStore) GetJobExecution(_ context.Context, id int64) (*client.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if execution, ok := s.executions[id]; ok {
		copied := *execution
		return &copied, nil
	}
	return nil, commonerrors.NewNotFound(client.JobExecutionKind, fmt.Sprintf("%d", id))
}

func (s *fakeStore) GetJobExecutionsByIds(_ context.Context, ids []int64) ([]*client.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*client.JobExecution
	for _, id := range ids {
		if execution, ok := s.executions[id]; ok {
			copied := *execution
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertJobExecution(_ context.Context, execution *client.JobExecution) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextId
	s.nextId++
	copied := *execution
	copied.Id = id
	s.executions[id] = &copied
	s.inserted = append(s.inserted, id)
	return id, nil
}

func (s *fakeStore) UpdateJobExecution(_ context.Context, execution *client.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *execution
	s.executions[execution.Id] = &copied
	return nil
}

func (s *fakeStore) GetJobConfiguration(_ context.Context, id string) (*client.JobConfigurationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.configurations[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, commonerrors.NewNotFound(client.JobConfigurationKind, id)
}

// seedExecution stores a completed execution backed by a saved configuration.
func seedExecution(store *fakeStore, id int64, label string, cfg types.JobConfiguration) {
	configId := fmt.Sprintf("cfg-%d", id)
	store.configurations[configId] = &client.JobConfigurationRecord{
		Id:      configId,
		Name:    cfg.Name,
		Payload: string(jsonutil.MarshalSilently(cfg)),
	}
	store.executions[id] = &client.JobExecution{
		Id:              id,
		ConfigurationId: dbutils.NullString(configId),
		Label:           dbutils.NullString(label),
		Status:          types.ExecutionCompleted,
	}
}

func plainConfig() types.JobConfiguration {
	return types.JobConfiguration{
		FilePaths: types.FilePaths{OutputDirectory: "/tmp/out"},
	}
}

func TestRerunSingleCreatesAFreshRow(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 7, "castle batch", plainConfig())
	eng := &fakeEngine{}
	c := New(eng, store)

	executionId, err := c.RerunJobExecution(context.Background(), 7, &types.ApiKeys{OpenAI: "sk", Runware: "rw"})
	assert.NilError(t, err)

	assert.Equal(t, 1, len(store.inserted))
	assert.Equal(t, store.inserted[0], executionId)
	assert.Assert(t, executionId != 7)

	assert.Equal(t, 1, len(eng.started))
	req := eng.started[0]
	assert.Assert(t, req.IsRerun)
	assert.Equal(t, executionId, req.DatabaseExecutionId)
	assert.Equal(t, "castle batch (Rerun)", req.Label)
	assert.Equal(t, "sk", req.Config.Keys().OpenAI)

	replay, gerr := store.GetJobExecution(context.Background(), executionId)
	assert.NilError(t, gerr)
	assert.Assert(t, replay.IsRerun)
	assert.Equal(t, "cfg-7", dbutils.ParseNullString(replay.ConfigurationId))
	assert.Equal(t, "castle batch (Rerun)", dbutils.ParseNullString(replay.Label))

	// the source row keeps its history
	original, gerr := store.GetJobExecution(context.Background(), 7)
	assert.NilError(t, gerr)
	assert.Equal(t, types.ExecutionCompleted, original.Status)
	assert.Equal(t, "castle batch", dbutils.ParseNullString(original.Label))
}

func TestRerunLabelPrefersTheConfiguration(t *testing.T) {
	store := newFakeStore()
	cfg := plainConfig()
	cfg.Name = "config name"
	cfg.Parameters.Label = "config label"
	seedExecution(store, 5, "old label", cfg)
	eng := &fakeEngine{}
	c := New(eng, store)

	_, err := c.RerunJobExecution(context.Background(), 5, nil)
	assert.NilError(t, err)
	assert.Equal(t, "config label (Rerun)", eng.started[0].Label)
}

func TestRerunLabelIsNotStacked(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 3, "castle batch (Rerun)", plainConfig())
	eng := &fakeEngine{}
	c := New(eng, store)

	_, err := c.RerunJobExecution(context.Background(), 3, nil)
	assert.NilError(t, err)
	assert.Equal(t, "castle batch (Rerun)", eng.started[0].Label)
}

func TestRerunRejectedWhileEngineIsBusy(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 1, "a", plainConfig())
	seedExecution(store, 2, "b", plainConfig())
	eng := &fakeEngine{running: true}
	c := New(eng, store)

	_, err := c.RerunJobExecution(context.Background(), 1, nil)
	assert.Equal(t, commonerrors.JobAlreadyRunning, commonerrors.GetErrorCode(err))
	assert.Assert(t, strings.Contains(err.Error(), "Another job is currently running"))

	_, err = c.RerunJobExecutions(context.Background(), []int64{1, 2}, nil)
	assert.Assert(t, err != nil)
	assert.Assert(t, strings.Contains(err.Error(), "Cannot rerun jobs while other jobs are running"))
}

func TestRerunWithoutConfigurationFails(t *testing.T) {
	store := newFakeStore()
	store.executions[9] = &client.JobExecution{Id: 9, Status: types.ExecutionCompleted}
	c := New(&fakeEngine{}, store)

	_, err := c.RerunJobExecution(context.Background(), 9, nil)
	assert.Equal(t, commonerrors.BadRequest, commonerrors.GetErrorCode(err))

	// a dangling configuration id is just as unusable
	store.executions[10] = &client.JobExecution{Id: 10, Status: types.ExecutionCompleted,
		ConfigurationId: dbutils.NullString("gone")}
	_, err = c.RerunJobExecution(context.Background(), 10, nil)
	assert.Equal(t, commonerrors.BadRequest, commonerrors.GetErrorCode(err))
	assert.Assert(t, strings.Contains(err.Error(), "no longer exists"))
}

func TestBulkRerunDrainsTheQueueInOrder(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 1, "a", plainConfig())
	seedExecution(store, 2, "b", plainConfig())
	seedExecution(store, 3, "c", plainConfig())
	eng := &fakeEngine{}
	c := New(eng, store)

	result, err := c.RerunJobExecutions(context.Background(), []int64{1, 2, 3}, nil)
	assert.NilError(t, err)
	assert.Assert(t, result.Started >= 100)
	assert.DeepEqual(t, []int64{2, 3}, result.Queued)
	assert.Equal(t, 2, c.QueueLength())

	eng.complete(result.Started)
	assert.Equal(t, 1, c.QueueLength())
	eng.complete(eng.started[1].DatabaseExecutionId)
	assert.Equal(t, 0, c.QueueLength())
	eng.complete(eng.started[2].DatabaseExecutionId)

	assert.DeepEqual(t, []string{"a (Rerun)", "b (Rerun)", "c (Rerun)"}, eng.startedLabels())
}

func TestBulkRerunPartitionsInvalidExecutions(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 1, "a", plainConfig())
	store.executions[2] = &client.JobExecution{Id: 2, Status: types.ExecutionRunning,
		ConfigurationId: dbutils.NullString("cfg-2")}
	store.executions[3] = &client.JobExecution{Id: 3, Status: types.ExecutionCompleted,
		ConfigurationId: dbutils.NullString("deleted-cfg")}
	eng := &fakeEngine{}
	c := New(eng, store)

	result, err := c.RerunJobExecutions(context.Background(), []int64{1, 2, 3, 5}, nil)
	assert.NilError(t, err)
	assert.Assert(t, result.Started >= 100)
	assert.Equal(t, "execution is already running", result.Failed[2])
	assert.Equal(t, "configuration no longer exists", result.Failed[3])
	assert.Equal(t, "execution not found", result.Failed[5])
}

func TestQueueSurvivesAStartFailure(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 1, "a", plainConfig())
	seedExecution(store, 2, "b", plainConfig())
	eng := &fakeEngine{}
	c := New(eng, store)

	_, err := c.RerunJobExecutions(context.Background(), []int64{1, 2}, nil)
	assert.NilError(t, err)
	assert.Equal(t, 1, c.QueueLength())

	eng.mu.Lock()
	eng.failNext = true
	eng.mu.Unlock()
	eng.complete(eng.started[0].DatabaseExecutionId)

	// the head stays queued so a later completion can retry it
	assert.Equal(t, 1, c.QueueLength())
	c.ProcessNextBulkRerunJob()
	assert.Equal(t, 0, c.QueueLength())
	assert.DeepEqual(t, []string{"a (Rerun)", "b (Rerun)"}, eng.startedLabels())
}

func TestFreshRowMarkedFailedWhenStartFails(t *testing.T) {
	store := newFakeStore()
	seedExecution(store, 4, "a", plainConfig())
	eng := &fakeEngine{failNext: true}
	c := New(eng, store)

	_, err := c.RerunJobExecution(context.Background(), 4, nil)
	assert.Assert(t, err != nil)

	assert.Equal(t, 1, len(store.inserted))
	replay, gerr := store.GetJobExecution(context.Background(), store.inserted[0])
	assert.NilError(t, gerr)
	assert.Equal(t, types.ExecutionFailed, replay.Status)
	assert.Assert(t, dbutils.ParseNullString(replay.ErrorMessage) != "")

	original, gerr := store.GetJobExecution(context.Background(), 4)
	assert.NilError(t, gerr)
	assert.Equal(t, types.ExecutionCompleted, original.Status)
}
