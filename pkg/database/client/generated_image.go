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
	"github.com/ascensum/gen-image-factory/pkg/utils/jsonutil"
)

const (
	TGeneratedImage = "generated_image"

	GeneratedImageKind = "GeneratedImage"
)

var (
	insertGeneratedImageFormat = `INSERT INTO ` + TGeneratedImage + ` (%s) VALUES (%s) RETURNING id`
	updateGeneratedImageCmd    = fmt.Sprintf(`UPDATE %s
		SET generation_prompt = :generation_prompt,
		    seed_number = :seed_number,
		    qc_status = :qc_status,
		    qc_reason = :qc_reason,
		    temp_image_path = :temp_image_path,
		    final_image_path = :final_image_path,
		    settings = :settings,
		    metadata = :metadata,
		    update_time = NOW()
		WHERE id = :id`, TGeneratedImage)
	updateGeneratedImageByMappingIdCmd = fmt.Sprintf(`UPDATE %s
		SET generation_prompt = :generation_prompt,
		    seed_number = :seed_number,
		    qc_status = :qc_status,
		    qc_reason = :qc_reason,
		    temp_image_path = :temp_image_path,
		    final_image_path = :final_image_path,
		    settings = :settings,
		    metadata = :metadata,
		    update_time = NOW()
		WHERE image_mapping_id = :image_mapping_id`, TGeneratedImage)
)

// InsertGeneratedImage inserts a new image row and returns its generated id.
func (c *Client) InsertGeneratedImage(ctx context.Context, image *GeneratedImage) (int64, error) {
	if image == nil {
		return 0, commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}

	rows, err := db.NamedQueryContext(ctx, generateCommand(*image, insertGeneratedImageFormat, "id"), image)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generated_image to db: %v", err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err = rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan generated_image id: %v", err)
		}
	}
	return id, nil
}

// UpdateGeneratedImage updates all mutable columns of an image row by id.
func (c *Client) UpdateGeneratedImage(ctx context.Context, image *GeneratedImage) error {
	if image == nil || image.Id == 0 {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	_, err = db.NamedExecContext(ctx, updateGeneratedImageCmd, image)
	if err != nil {
		klog.ErrorS(err, "failed to update generated_image db", "id", image.Id)
		return err
	}
	return nil
}

// UpdateGeneratedImageByMappingId updates all mutable columns of an image row
// addressed by its stable mapping id.
func (c *Client) UpdateGeneratedImageByMappingId(ctx context.Context, image *GeneratedImage) error {
	if image == nil || image.ImageMappingId == "" {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	_, err = db.NamedExecContext(ctx, updateGeneratedImageByMappingIdCmd, image)
	if err != nil {
		klog.ErrorS(err, "failed to update generated_image db", "mappingId", image.ImageMappingId)
		return err
	}
	return nil
}

// UpdateQCStatus updates the qc verdict of an image by id.
func (c *Client) UpdateQCStatus(ctx context.Context, id int64, status, reason string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET qc_status=$2, qc_reason=$3, update_time=NOW() WHERE id=$1`, TGeneratedImage)
	_, err = db.ExecContext(ctx, cmd, id, status, dbutils.NullString(reason))
	if err != nil {
		klog.ErrorS(err, "failed to update generated_image qc status", "id", id)
		return err
	}
	return nil
}

// UpdateQCStatusByMappingId updates the qc verdict of an image by mapping id.
func (c *Client) UpdateQCStatusByMappingId(ctx context.Context, mappingId, status, reason string) error {
	if mappingId == "" {
		return commonerrors.NewBadRequest("imageMappingId is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET qc_status=$2, qc_reason=$3, update_time=NOW() WHERE image_mapping_id=$1`, TGeneratedImage)
	_, err = db.ExecContext(ctx, cmd, mappingId, status, dbutils.NullString(reason))
	if err != nil {
		klog.ErrorS(err, "failed to update generated_image qc status", "mappingId", mappingId)
		return err
	}
	return nil
}

// UpdateImagePathsByMappingId updates the temp and final paths of an image.
// An empty path clears the corresponding column.
func (c *Client) UpdateImagePathsByMappingId(ctx context.Context, mappingId, tempPath, finalPath string) error {
	if mappingId == "" {
		return commonerrors.NewBadRequest("imageMappingId is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET temp_image_path=$2, final_image_path=$3, update_time=NOW() WHERE image_mapping_id=$1`, TGeneratedImage)
	_, err = db.ExecContext(ctx, cmd, mappingId, dbutils.NullString(tempPath), dbutils.NullString(finalPath))
	if err != nil {
		klog.ErrorS(err, "failed to update generated_image paths", "mappingId", mappingId)
		return err
	}
	return nil
}

// UpdateMetadataById merges the given metadata document into the one already
// stored on the image row. Existing keys not present in the patch survive.
func (c *Client) UpdateMetadataById(ctx context.Context, id int64, metadata []byte) error {
	image, err := c.GetGeneratedImage(ctx, id)
	if err != nil {
		return err
	}
	merged := jsonutil.MergeObjects([]byte(dbutils.ParseNullString(image.Metadata)), metadata)

	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET metadata=$2, update_time=NOW() WHERE id=$1`, TGeneratedImage)
	_, err = db.ExecContext(ctx, cmd, id, string(merged))
	if err != nil {
		klog.ErrorS(err, "failed to update generated_image metadata", "id", id)
		return err
	}
	return nil
}

// DeleteGeneratedImage removes an image row.
func (c *Client) DeleteGeneratedImage(ctx context.Context, id int64) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, TGeneratedImage)
	_, err = db.ExecContext(ctx, cmd, id)
	if err != nil {
		klog.ErrorS(err, "failed to delete generated_image", "id", id)
		return err
	}
	return nil
}

// SelectGeneratedImages retrieves multiple image records.
func (c *Client) SelectGeneratedImages(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*GeneratedImage, error) {
	startTime := time.Now().UTC()
	defer func() {
		if query != nil {
			strQuery := dbutils.CvtToSqlStr(query)
			klog.Infof("select generated_image, query: %s, orderBy: %v, limit: %d, offset: %d, cost (%v)",
				strQuery, orderBy, limit, offset, time.Since(startTime))
		}
	}()
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).From(TGeneratedImage)
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

	var images []*GeneratedImage
	if c.RequestTimeout > 0 {
		ctx2, cancel := context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
		err = db.SelectContext(ctx2, &images, sql, args...)
	} else {
		err = db.SelectContext(ctx, &images, sql, args...)
	}
	return images, err
}

// GetGeneratedImage retrieves an image by id.
func (c *Client) GetGeneratedImage(ctx context.Context, id int64) (*GeneratedImage, error) {
	if id == 0 {
		return nil, commonerrors.NewBadRequest("imageId is empty")
	}
	dbTags := GetGeneratedImageFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "Id"): id}
	images, err := c.SelectGeneratedImages(ctx, dbSql, nil, 1, 0)
	if err != nil {
		klog.ErrorS(err, "failed to select generated_image", "sql", dbutils.CvtToSqlStr(dbSql))
		return nil, err
	}
	if len(images) == 0 {
		return nil, commonerrors.NewNotFound(GeneratedImageKind, fmt.Sprintf("%d", id))
	}
	return images[0], nil
}

// GetGeneratedImageByMappingId retrieves an image by its stable mapping id.
func (c *Client) GetGeneratedImageByMappingId(ctx context.Context, mappingId string) (*GeneratedImage, error) {
	if mappingId == "" {
		return nil, commonerrors.NewBadRequest("imageMappingId is empty")
	}
	dbTags := GetGeneratedImageFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "ImageMappingId"): mappingId}
	images, err := c.SelectGeneratedImages(ctx, dbSql, nil, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, commonerrors.NewNotFound(GeneratedImageKind, mappingId)
	}
	return images[0], nil
}

// GetGeneratedImagesByExecution retrieves the images of one execution in
// creation order.
func (c *Client) GetGeneratedImagesByExecution(ctx context.Context, executionId int64) ([]*GeneratedImage, error) {
	dbTags := GetGeneratedImageFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "ExecutionId"): executionId}
	return c.SelectGeneratedImages(ctx, dbSql, []string{Id + " " + ASC}, 0, 0)
}

// GetGeneratedImagesByQCStatus retrieves all images carrying the given verdict.
func (c *Client) GetGeneratedImagesByQCStatus(ctx context.Context, status string) ([]*GeneratedImage, error) {
	if status == "" {
		return nil, commonerrors.NewBadRequest("qcStatus is empty")
	}
	dbTags := GetGeneratedImageFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "QCStatus"): status}
	return c.SelectGeneratedImages(ctx, dbSql, []string{Id + " " + ASC}, 0, 0)
}

// GetGeneratedImagesByIds retrieves a set of images by id, in id order.
func (c *Client) GetGeneratedImagesByIds(ctx context.Context, ids []int64) ([]*GeneratedImage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	dbTags := GetGeneratedImageFieldTags()
	dbSql := sqrl.Eq{GetFieldTag(dbTags, "Id"): ids}
	return c.SelectGeneratedImages(ctx, dbSql, []string{Id + " " + ASC}, len(ids), 0)
}

// CountGeneratedImages returns the total count of images matching the criteria.
func (c *Client) CountGeneratedImages(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	sql, args, err := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).From(TGeneratedImage).Where(query).ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	err = db.GetContext(ctx, &cnt, sql, args...)
	return cnt, err
}
