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

	"k8s.io/klog/v2"

	"github.com/ascensum/gen-image-factory/pkg/database/client"
	dbutils "github.com/ascensum/gen-image-factory/pkg/database/utils"
	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/events"
	"github.com/ascensum/gen-image-factory/pkg/types"
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

// Event types published by the coordinator.
const (
	EventQueueUpdated = "bulk-rerun-queue-updated"
	EventJobStarted   = "bulk-rerun-job-started"
	EventJobError     = "bulk-rerun-job-error"
)

const rerunSuffix = " (Rerun)"

// Starter is the job-engine surface the coordinator drives.
type Starter interface {
	StartJob(req *engine.StartRequest) (int64, error)
	IsRunning() bool
	SetCompletionCallback(fn func(executionId int64, status string))
}

// Store is the persistence surface the coordinator consumes.
type Store interface {
	GetJobExecution(ctx context.Context, id int64) (*client.JobExecution, error)
	GetJobExecutionsByIds(ctx context.Context, ids []int64) ([]*client.JobExecution, error)
	InsertJobExecution(ctx context.Context, execution *client.JobExecution) (int64, error)
	UpdateJobExecution(ctx context.Context, execution *client.JobExecution) error
	GetJobConfiguration(ctx context.Context, id string) (*client.JobConfigurationRecord, error)
}

// BulkRerunResult reports how a bulk rerun request was dispatched.
type BulkRerunResult struct {
	Started int64            `json:"started,omitempty"`
	Queued  []int64          `json:"queued,omitempty"`
	Failed  map[int64]string `json:"failed,omitempty"`
}

// Coordinator replays finished executions through the engine. Bulk requests
// are queued and advanced one at a time as the engine frees up.
type Coordinator struct {
	engine Starter
	store  Store
	events *events.Broadcaster

	mu    sync.Mutex
	queue []int64
	keys  *types.ApiKeys
}

// New wires a coordinator and hooks it into the engine's completion callback
// so queued reruns advance automatically.
func New(starter Starter, store Store) *Coordinator {
	c := &Coordinator{
		engine: starter,
		store:  store,
		events: events.NewBroadcaster(),
	}
	starter.SetCompletionCallback(func(executionId int64, status string) {
		c.ProcessNextBulkRerunJob()
	})
	return c
}

// Events exposes the coordinator's event feed.
func (c *Coordinator) Events() *events.Broadcaster {
	return c.events
}

// RerunJobExecution replays one finished execution on a fresh row. keys may
// be nil when the process environment already carries the credentials.
func (c *Coordinator) RerunJobExecution(ctx context.Context, executionId int64, keys *types.ApiKeys) (int64, error) {
	if c.engine.IsRunning() {
		return 0, commonerrors.NewJobAlreadyRunning("Another job is currently running")
	}
	return c.startRerun(ctx, executionId, keys)
}

// RerunJobExecutions replays a batch of executions: the first queueable one
// starts immediately, the rest wait in the bulk queue.
func (c *Coordinator) RerunJobExecutions(ctx context.Context, executionIds []int64, keys *types.ApiKeys) (*BulkRerunResult, error) {
	if len(executionIds) == 0 {
		return nil, commonerrors.NewBadRequest("executionIds is empty")
	}
	if c.engine.IsRunning() {
		return nil, commonerrors.NewBadRequest("Cannot rerun jobs while other jobs are running")
	}

	executions, err := c.store.GetJobExecutionsByIds(ctx, executionIds)
	if err != nil {
		return nil, err
	}
	byId := make(map[int64]*client.JobExecution, len(executions))
	for _, execution := range executions {
		byId[execution.Id] = execution
	}

	result := &BulkRerunResult{Failed: make(map[int64]string)}
	var queueable []int64
	for _, id := range executionIds {
		execution, ok := byId[id]
		switch {
		case !ok:
			result.Failed[id] = "execution not found"
		case execution.Status == types.ExecutionRunning:
			result.Failed[id] = "execution is already running"
		case dbutils.ParseNullString(execution.ConfigurationId) == "":
			result.Failed[id] = "execution has no configuration"
		default:
			if _, cerr := c.store.GetJobConfiguration(ctx, dbutils.ParseNullString(execution.ConfigurationId)); cerr != nil {
				result.Failed[id] = "configuration no longer exists"
				continue
			}
			queueable = append(queueable, id)
		}
	}
	if len(queueable) == 0 {
		return result, commonerrors.NewBadRequest("no execution in the batch can be rerun")
	}

	started, err := c.startRerun(ctx, queueable[0], keys)
	if err != nil {
		result.Failed[queueable[0]] = err.Error()
		queueable = queueable[1:]
		if len(queueable) == 0 {
			return result, err
		}
		// Queue the remainder anyway; the next completion will pick it up.
	} else {
		result.Started = started
		queueable = queueable[1:]
	}

	c.mu.Lock()
	c.queue = append(c.queue, queueable...)
	c.keys = keys
	queueLen := len(c.queue)
	c.mu.Unlock()
	result.Queued = queueable

	c.publishQueue(queueLen)
	return result, nil
}

// QueueLength returns the number of executions waiting for a rerun slot.
func (c *Coordinator) QueueLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// ProcessNextBulkRerunJob starts the execution at the head of the bulk
// queue. A start failure leaves the head in place so nothing is lost.
func (c *Coordinator) ProcessNextBulkRerunJob() {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	next := c.queue[0]
	keys := c.keys
	c.mu.Unlock()

	executionId, err := c.startRerun(context.Background(), next, keys)
	if err != nil {
		klog.ErrorS(err, "failed to start the next queued rerun", "execution", next)
		c.events.Publish(events.Event{
			Type:        EventJobError,
			ExecutionId: next,
			Payload:     map[string]interface{}{"error": err.Error()},
		})
		return
	}

	c.mu.Lock()
	c.queue = c.queue[1:]
	queueLen := len(c.queue)
	c.mu.Unlock()

	c.events.Publish(events.Event{Type: EventJobStarted, ExecutionId: executionId})
	c.publishQueue(queueLen)
}

// startRerun loads the finished execution, fetches its saved configuration
// and replays it on a freshly created row. The fresh row is marked failed
// when the start fails.
func (c *Coordinator) startRerun(ctx context.Context, executionId int64, keys *types.ApiKeys) (int64, error) {
	execution, err := c.store.GetJobExecution(ctx, executionId)
	if err != nil {
		return 0, err
	}
	configId := dbutils.ParseNullString(execution.ConfigurationId)
	if configId == "" {
		return 0, commonerrors.NewBadRequest(
			fmt.Sprintf("execution %d has no configuration", executionId))
	}
	record, err := c.store.GetJobConfiguration(ctx, configId)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			return 0, commonerrors.NewBadRequest(
				fmt.Sprintf("the configuration for execution %d no longer exists", executionId))
		}
		return 0, err
	}
	var cfg types.JobConfiguration
	if err = jsonutil.Unmarshal([]byte(record.Payload), &cfg); err != nil {
		return 0, commonerrors.NewBadRequest(
			fmt.Sprintf("execution %d has an unparseable configuration", executionId))
	}
	if keys != nil {
		cfg.ApiKeys = keys
	}

	replay := &client.JobExecution{
		ConfigurationId: execution.ConfigurationId,
		Label:           dbutils.NullString(rerunLabel(execution, &cfg)),
		Status:          types.ExecutionRunning,
		IsRerun:         true,
	}
	replayId, err := c.store.InsertJobExecution(ctx, replay)
	if err != nil {
		return 0, err
	}
	replay.Id = replayId

	startedId, err := c.engine.StartJob(&engine.StartRequest{
		Config:               &cfg,
		IsRerun:              true,
		DatabaseExecutionId:  replayId,
		ForceSequentialIndex: -1,
		Label:                dbutils.ParseNullString(replay.Label),
	})
	if err != nil {
		replay.Status = types.ExecutionFailed
		replay.ErrorMessage = dbutils.NullString(err.Error())
		if rerr := c.store.UpdateJobExecution(ctx, replay); rerr != nil {
			klog.ErrorS(rerr, "failed to mark the replay row failed", "execution", replayId)
		}
		return 0, err
	}
	return startedId, nil
}

// rerunLabel derives the replay label from the saved configuration, falling
// back to the prior execution's own label.
func rerunLabel(execution *client.JobExecution, cfg *types.JobConfiguration) string {
	base := cfg.Parameters.Label
	if base == "" {
		base = cfg.Name
	}
	if base == "" {
		base = dbutils.ParseNullString(execution.Label)
	}
	if base == "" {
		base = fmt.Sprintf("Job %d", execution.Id)
	}
	if strings.HasSuffix(base, rerunSuffix) {
		return base
	}
	return base + rerunSuffix
}

func (c *Coordinator) publishQueue(queueLen int) {
	c.events.Publish(events.Event{
		Type:    EventQueueUpdated,
		Payload: map[string]interface{}{"queueLength": queueLen},
	})
}
