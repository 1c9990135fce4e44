/*
 * Copyright (C) 2025-2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	DESC = "desc"
	ASC  = "asc"

	CreateTime = "create_time"
	Id         = "id"
)

// JobExecution is one run of the generation pipeline.
type JobExecution struct {
	Id               int64          `db:"id"`
	ConfigurationId  sql.NullString `db:"configuration_id"`
	Label            sql.NullString `db:"label"`
	Status           string         `db:"status"`
	IsRerun          bool           `db:"is_rerun"`
	StartTime        pq.NullTime    `db:"start_time"`
	EndTime          pq.NullTime    `db:"end_time"`
	TotalImages      int            `db:"total_images"`
	SuccessfulImages int            `db:"successful_images"`
	FailedImages     int            `db:"failed_images"`
	ErrorMessage     sql.NullString `db:"error_message"`
	ConfigSnapshot   sql.NullString `db:"config_snapshot"`
}

// GetJobExecutionFieldTags returns the JobExecutionFieldTags value.
func GetJobExecutionFieldTags() map[string]string {
	e := JobExecution{}
	return getFieldTags(e)
}

// GeneratedImage is one produced image and its QC bookkeeping.
type GeneratedImage struct {
	Id               int64          `db:"id"`
	ImageMappingId   string         `db:"image_mapping_id"`
	ExecutionId      int64          `db:"execution_id"`
	GenerationPrompt sql.NullString `db:"generation_prompt"`
	SeedNumber       sql.NullInt64  `db:"seed_number"`
	QCStatus         string         `db:"qc_status"`
	QCReason         sql.NullString `db:"qc_reason"`
	TempImagePath    sql.NullString `db:"temp_image_path"`
	FinalImagePath   sql.NullString `db:"final_image_path"`
	Settings         sql.NullString `db:"settings"`
	Metadata         sql.NullString `db:"metadata"`
	CreateTime       pq.NullTime    `db:"create_time"`
	UpdateTime       pq.NullTime    `db:"update_time"`
}

// GetGeneratedImageFieldTags returns the GeneratedImageFieldTags value.
func GetGeneratedImageFieldTags() map[string]string {
	img := GeneratedImage{}
	return getFieldTags(img)
}

// JobConfigurationRecord is the gorm entity holding a saved job configuration
// as a JSON payload.
type JobConfigurationRecord struct {
	Id        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Payload   string    `gorm:"column:payload;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName maps the entity to its table.
func (JobConfigurationRecord) TableName() string {
	return "job_configuration"
}

// SettingsRecord is the gorm entity holding the application settings payload.
// A single row with a fixed id is used.
type SettingsRecord struct {
	Id        int64     `gorm:"column:id;primaryKey"`
	Payload   string    `gorm:"column:payload;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName maps the entity to its table.
func (SettingsRecord) TableName() string {
	return "settings"
}

// CredentialRecord is the gorm entity backing the fallback credential store.
// Secret is encrypted before it reaches this layer.
type CredentialRecord struct {
	Service   string    `gorm:"column:service;primaryKey"`
	Account   string    `gorm:"column:account;primaryKey"`
	Secret    string    `gorm:"column:secret;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName maps the entity to its table.
func (CredentialRecord) TableName() string {
	return "credential"
}

// getFieldTags retrieves FieldTags for internal use.
func getFieldTags(obj interface{}) map[string]string {
	result := make(map[string]string)
	t := reflect.TypeOf(obj)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		result[strings.ToLower(field.Name)] = field.Tag.Get("db")
	}
	return result
}

// generateCommand generates SQL command string using reflection
// Iterates through struct fields and builds column and value lists
// Skips fields with specified ignoreTag
// Returns formatted SQL command with columns and values
func generateCommand(obj interface{}, format, ignoreTag string) string {
	t := reflect.TypeOf(obj)
	columns := make([]string, 0, t.NumField())
	values := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == ignoreTag {
			continue
		}
		columns = append(columns, tag)
		values = append(values, fmt.Sprintf(":%s", tag))
	}
	cmd := fmt.Sprintf(format, strings.Join(columns, ", "), strings.Join(values, ", "))
	return cmd
}

// GetFieldTag returns the FieldTag value.
func GetFieldTag(tags map[string]string, name string) string {
	name = strings.ToLower(name)
	return tags[name]
}
