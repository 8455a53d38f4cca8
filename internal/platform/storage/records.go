// Package storage persists finished diagnoses to a local sqlite database so
// operators can audit past results after the redis keys expire.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"smartagri-server-go/internal/domain/diagnosis"
	"smartagri-server-go/internal/platform/errors"
)

// DiagnosisRecord is one persisted diagnosis outcome.
type DiagnosisRecord struct {
	TaskID    string         `gorm:"primaryKey;size:64" json:"task_id"`
	ImageURL  string         `gorm:"size:2048" json:"image_url"`
	CropType  string         `gorm:"size:128" json:"crop_type,omitempty"`
	Location  string         `gorm:"size:256" json:"location,omitempty"`
	Status    string         `gorm:"size:16;index" json:"status"`
	Result    datatypes.JSON `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Repository stores diagnosis records.
type Repository struct {
	db *gorm.DB
}

// NewRepository opens (creating if needed) the sqlite database at path and
// migrates the schema.
func NewRepository(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "storage.NewRepository",
				fmt.Sprintf("create database directory %s", dir), err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.NewRepository",
			fmt.Sprintf("open database %s", path), err)
	}
	if err := db.AutoMigrate(&DiagnosisRecord{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.NewRepository", "migrate schema", err)
	}
	return &Repository{db: db}, nil
}

// RecordResult upserts the record for a task. Implements the worker's
// Recorder interface.
func (r *Repository) RecordResult(ctx context.Context, task *diagnosis.Task, status string,
	result *diagnosis.Result, errMsg string) error {

	record := DiagnosisRecord{
		TaskID:   task.ID,
		ImageURL: task.ImageURL,
		CropType: task.CropType,
		Location: task.Location,
		Status:   status,
		Error:    errMsg,
	}
	if result != nil {
		data, err := sonic.Marshal(result)
		if err != nil {
			return errors.Wrap(errors.KindStorage, "storage.RecordResult", "encode result", err)
		}
		record.Result = datatypes.JSON(data)
	}

	err := r.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.RecordResult",
			fmt.Sprintf("save record %s", task.ID), err)
	}
	return nil
}

// Get returns the record for a task id.
func (r *Repository) Get(ctx context.Context, taskID string) (*DiagnosisRecord, bool, error) {
	var record DiagnosisRecord
	err := r.db.WithContext(ctx).First(&record, "task_id = ?", taskID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.KindStorage, "storage.Get",
			fmt.Sprintf("load record %s", taskID), err)
	}
	return &record, true, nil
}

// Recent returns the newest records, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []DiagnosisRecord
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.Recent", "list records", err)
	}
	return records, nil
}
