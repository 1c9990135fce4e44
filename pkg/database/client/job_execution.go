/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	dbutils "github.com/ascensum/gen-image-factory/pkg/database/utils"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
)

const (
	TJobExecution = "job_execution"

	JobExecutionKind = "JobExecution"
)

var (
	insertJobExecutionFormat = `INSERT INTO ` + TJobExecution + ` (%s) VALUES (%s) RETURNING id`
	updateJobExecutionCmd    = fmt.Sprintf(`UPDATE %s
		SET configuration_id = :configuration_id,
		    label = :label,
		    status = :status,
		    is_rerun = :is_rerun,
		    start_time = :start_time,
		    end_time = :end_time,
		    total_images = :total_images,
		    successful_images = :successful_images,
		    failed_images = :failed_images,
		    error_message = :error_message,
		    config_snapshot = :config_snapshot
		WHERE id = :id`, TJobExecution)
)

// InsertJobExecution inserts a new execution row and returns its generated id.
func (c *Client) InsertJobExecution(ctx context.Context, execution *JobExecution) (int64, error) {
	if execution == nil {
		return 0, commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}

	rows, err := db.NamedQueryContext(ctx, generateCommand(*execution, insertJobExecutionFormat, "id"), execution)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job_execution to db: %v", err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err = rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan job_execution id: %v", err)
		}
	}
	return id, nil
}

// UpdateJobExecution updates all mutable columns of an execution row.
func (c *Client) UpdateJobExecution(ctx context.Context, execution *JobExecution) error {
	if execution == nil || execution.Id == 0 {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	_, err = db.NamedExecContext(ctx, updateJobExecutionCmd, execution)
	if err != nil {
		klog.ErrorS(err, "failed to update job_execution db", "id", execution.Id)
		return err
	}
	return nil
}

// UpdateJobExecutionStatistics updates the image counters of an execution.
func (c *Client) UpdateJobExecutionStatistics(ctx context.Context, id int64, total, successful, failed int) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET total_images=$2, successful_images=$3, failed_images=$4 WHERE id=$1`, TJobExecution)
	_, err = db.ExecContext(ctx, cmd, id, total, successful, failed)
	if err != nil {
		klog.ErrorS(err, "failed to update job_execution statistics", "id", id)
		return err
	}
	return nil
}

// SetJobExecutionFinished stamps the terminal status, end time and optional
// error message of an execution.
func (c *Client) SetJobExecutionFinished(ctx context.Context, id int64, status, errorMessage string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	endTime := dbutils.NullTime(time.Now().UTC())
	cmd := fmt.Sprintf(`UPDATE %s SET status=$2, end_time=$3, error_message=$4 WHERE id=$1`, TJobExecution)
	_, err = db.ExecContext(ctx, cmd, id, status, endTime, dbutils.NullString(errorMessage))
	if err != nil {
		klog.ErrorS(err, "failed to finish job_execution db", "id", id)
		return err
	}
	return nil
}

// SelectJobExecutions retrieves multiple execution records.
func (c *Client) SelectJobExecutions(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*JobExecution, error) {
	startTime := time.Now().UTC()
	defer func() {
		if query != nil {
			strQuery := dbutils.CvtToSqlStr(query)
			klog.Infof("select job_execution, query: %s, orderBy: %v, limit: %d, offset: %d, cost (%v)",
				strQuery, orderBy, limit, offset, time.Since(startTime))
		}
	}()
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).From(TJobExecution)
	if query != nil {
		builder = builder.Where(query)
	}
	builder = builder.OrderBy(orderBy...)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var executions []*JobExecution
	if c.RequestTimeout > 0 {
		ctx2, cancel := context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
		err = db.SelectContext(ctx2, &executions, sql, args...)
	} else {
		err = db.SelectContext(ctx, &executions, sql, args...)
	}
	return executions, err
}

// GetJobExecution retrieves an execution by id.
func (c *Client) GetJobExecution(ctx context.Context, id int64) (*JobExecution, error) {
	if id == 0 {
		return nil, commonerrors.NewBadRequest("executionId is empty")
	}
	dbTags := GetJobExecutionFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "Id"): id}
	executions, err := c.SelectJobExecutions(ctx, dbSql, nil, 1, 0)
	if err != nil {
		klog.ErrorS(err, "failed to select job_execution", "sql", dbutils.CvtToSqlStr(dbSql))
		return nil, err
	}
	if len(executions) == 0 {
		return nil, commonerrors.NewNotFound(JobExecutionKind, fmt.Sprintf("%d", id))
	}
	return executions[0], nil
}

// GetJobExecutionsByIds retrieves executions by a set of ids, preserving only
// the rows that exist.
func (c *Client) GetJobExecutionsByIds(ctx context.Context, ids []int64) ([]*JobExecution, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	dbTags := GetJobExecutionFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "Id"): ids}
	return c.SelectJobExecutions(ctx, dbSql, []string{Id + " " + ASC}, len(ids), 0)
}

// CountJobExecutions returns the total count of executions matching the criteria.
func (c *Client) CountJobExecutions(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	sql, args, err := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).From(TJobExecution).Where(query).ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	err = db.GetContext(ctx, &cnt, sql, args...)
	return cnt, err
}
