/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package retry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/ascensum/gen-image-factory/pkg/database/client"
	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/events"
	"github.com/ascensum/gen-image-factory/pkg/failure"
	"github.com/ascensum/gen-image-factory/pkg/types"
)

// Event types published by the executor.
const (
	EventQueueUpdated     = "queue-updated"
	EventJobStatusUpdated = "job-status-updated"
	EventJobCompleted     = "job-completed"
	EventJobError         = "job-error"
	EventProgress         = "progress"
	EventStopped          = "stopped"
)

// Retry job states.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Store is the persistence surface the executor consumes.
type Store interface {
	GetGeneratedImage(ctx context.Context, id int64) (*client.GeneratedImage, error)
	GetGeneratedImagesByIds(ctx context.Context, ids []int64) ([]*client.GeneratedImage, error)
	GetJobExecution(ctx context.Context, id int64) (*client.JobExecution, error)
	GetJobConfiguration(ctx context.Context, id string) (*client.JobConfigurationRecord, error)
	UpdateQCStatus(ctx context.Context, id int64, status, reason string) error
	UpdateImagePathsByMappingId(ctx context.Context, mappingId, tempPath, finalPath string) error
	UpdateMetadataById(ctx context.Context, id int64, metadata []byte) error
}

// ModifiedSettings overrides the original recipe for one retry batch. The
// overrides live only on the in-memory job, they are never written back to
// the image rows.
type ModifiedSettings struct {
	Processing      *types.ProcessingSettings `json:"processing,omitempty"`
	FailOptions     *failure.FailOptions      `json:"failOptions,omitempty"`
	RemoveBgKey     string                    `json:"removeBgKey,omitempty"`
	OutputDirectory string                    `json:"outputDirectory,omitempty"`
}

// Job is one queued retry batch.
type Job struct {
	Id                  string            `json:"id"`
	ImageIds            []int64           `json:"imageIds"`
	UseOriginalSettings bool              `json:"useOriginalSettings"`
	Modified            *ModifiedSettings `json:"modified,omitempty"`
	Status              string            `json:"status"`
	Total               int               `json:"total"`
	Processed           int               `json:"processed"`
	Failed              int               `json:"failed"`
	Error               string            `json:"error,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	CompletedAt         time.Time         `json:"completedAt,omitempty"`
}

func (j *Job) clone() *Job {
	copied := *j
	copied.ImageIds = append([]int64(nil), j.ImageIds...)
	return &copied
}

// Executor drains a FIFO queue of retry batches, one batch at a time.
type Executor struct {
	store    Store
	vision   engine.Vision
	pipeline engine.ImageProcessor
	events   *events.Broadcaster

	mu           sync.Mutex
	queue        []*Job
	completed    []*Job
	isProcessing bool
	stopped      bool
}

// NewExecutor wires a retry executor from its collaborators.
func NewExecutor(store Store, vision engine.Vision, pipeline engine.ImageProcessor) *Executor {
	return &Executor{
		store:    store,
		vision:   vision,
		pipeline: pipeline,
		events:   events.NewBroadcaster(),
	}
}

// Events exposes the executor's event feed.
func (x *Executor) Events() *events.Broadcaster {
	return x.events
}

// AddBatchRetryJob queues a retry batch. The referenced images are flipped
// to retry_pending immediately; processing starts in the background.
func (x *Executor) AddBatchRetryJob(ctx context.Context, imageIds []int64, useOriginalSettings bool, modified *ModifiedSettings) (*Job, error) {
	if len(imageIds) == 0 {
		return nil, commonerrors.NewBadRequest("No image IDs provided")
	}
	images, err := x.store.GetGeneratedImagesByIds(ctx, imageIds)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, commonerrors.NewNotFound(client.GeneratedImageKind, "batch")
	}

	job := &Job{
		Id:                  uuid.NewString(),
		ImageIds:            append([]int64(nil), imageIds...),
		UseOriginalSettings: useOriginalSettings,
		Modified:            modified,
		Status:              JobPending,
		Total:               len(imageIds),
		CreatedAt:           time.Now().UTC(),
	}
	for _, image := range images {
		if err = x.store.UpdateQCStatus(ctx, image.Id, types.QCRetryPending, ""); err != nil {
			klog.ErrorS(err, "failed to mark image retry_pending", "id", image.Id)
		}
	}

	x.mu.Lock()
	x.stopped = false
	x.queue = append(x.queue, job)
	queueLen := len(x.queue)
	x.mu.Unlock()

	x.publish(EventQueueUpdated, job, map[string]interface{}{"queueLength": queueLen})
	go x.processQueue()
	return job.clone(), nil
}

// processQueue drains the queue. Only one drain loop runs at a time.
func (x *Executor) processQueue() {
	x.mu.Lock()
	if x.isProcessing {
		x.mu.Unlock()
		return
	}
	x.isProcessing = true
	x.mu.Unlock()

	defer func() {
		x.mu.Lock()
		x.isProcessing = false
		x.mu.Unlock()
	}()

	for {
		x.mu.Lock()
		if x.stopped || len(x.queue) == 0 {
			x.mu.Unlock()
			return
		}
		job := x.queue[0]
		x.queue = x.queue[1:]
		x.mu.Unlock()

		x.processJob(job)

		x.mu.Lock()
		x.completed = append(x.completed, job)
		x.mu.Unlock()
	}
}

// processJob runs one batch image by image.
func (x *Executor) processJob(job *Job) {
	ctx := context.Background()
	job.Status = JobProcessing
	x.publish(EventJobStatusUpdated, job, nil)

	for _, imageId := range job.ImageIds {
		x.mu.Lock()
		stopped := x.stopped
		x.mu.Unlock()
		if stopped {
			break
		}

		if err := x.processSingleImage(ctx, job, imageId); err != nil {
			job.Failed++
			klog.ErrorS(err, "retry failed for image", "id", imageId, "job", job.Id)
		}
		job.Processed++
		x.publish(EventProgress, job, map[string]interface{}{
			"processed": job.Processed,
			"failed":    job.Failed,
			"total":     job.Total,
		})
	}

	job.CompletedAt = time.Now().UTC()
	if job.Failed == job.Total {
		job.Status = JobFailed
		job.Error = "every image in the batch failed"
		x.publish(EventJobError, job, nil)
	} else {
		job.Status = JobCompleted
		x.publish(EventJobCompleted, job, nil)
	}
}

// Stop halts queue processing after the image currently in flight.
func (x *Executor) Stop() {
	x.mu.Lock()
	x.stopped = true
	x.mu.Unlock()
	x.events.Publish(events.Event{Type: EventStopped})
}

// ClearCompletedJobs drops the finished-batch history.
func (x *Executor) ClearCompletedJobs() {
	x.mu.Lock()
	x.completed = nil
	x.mu.Unlock()
	x.publish(EventQueueUpdated, nil, nil)
}

// QueueStatus returns a snapshot of the queue and the finished batches.
func (x *Executor) QueueStatus() (queued, completed []*Job, processing bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, job := range x.queue {
		queued = append(queued, job.clone())
	}
	for _, job := range x.completed {
		completed = append(completed, job.clone())
	}
	return queued, completed, x.isProcessing
}

func (x *Executor) publish(eventType string, job *Job, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if job != nil {
		payload["jobId"] = job.Id
		payload["status"] = job.Status
	}
	x.events.Publish(events.Event{Type: eventType, Payload: payload})
}
