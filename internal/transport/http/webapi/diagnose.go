// Package webapi registers the REST endpoints: diagnosis submission and
// status, taxonomy lookups, image upload, and system health.
package webapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartagri-server-go/internal/app/queue"
	"smartagri-server-go/internal/domain/diagnosis"
)

// TaskService is the diagnose handlers' view of the queue.
type TaskService interface {
	Enqueue(ctx context.Context, task *diagnosis.Task) (string, error)
	Status(ctx context.Context, taskID string) (*queue.StatusRecord, error)
}

// DiagnoseRequest is the submission payload.
type DiagnoseRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
	CropType string `json:"crop_type"`
	Location string `json:"location"`
}

// DiagnoseResponse acknowledges a submitted task.
type DiagnoseResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DiagnoseService handles diagnosis submission and status queries.
type DiagnoseService struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewDiagnoseService creates the handler set.
func NewDiagnoseService(tasks TaskService, logger *slog.Logger) *DiagnoseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnoseService{tasks: tasks, logger: logger}
}

// Register adds the diagnose routes to the API group.
func (s *DiagnoseService) Register(apiGroup *gin.RouterGroup) {
	group := apiGroup.Group("/diagnose")
	group.POST("", s.handleCreate)
	group.GET("/tasks/:task_id", s.handleStatus)
}

func (s *DiagnoseService) handleCreate(c *gin.Context) {
	var req DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error(), nil)
		return
	}

	task := &diagnosis.Task{
		ImageURL: req.ImageURL,
		CropType: req.CropType,
		Location: req.Location,
	}
	id, err := s.tasks.Enqueue(c.Request.Context(), task)
	if err != nil {
		s.logger.Error("enqueue diagnosis task failed", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to create diagnosis task", nil)
		return
	}

	s.logger.Info("diagnosis task created", "task_id", id, "image_url", req.ImageURL)
	respondSuccess(c, http.StatusOK, DiagnoseResponse{
		TaskID:  id,
		Status:  diagnosis.StatePending,
		Message: "Diagnosis task created successfully",
	}, "")
}

func (s *DiagnoseService) handleStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	record, err := s.tasks.Status(c.Request.Context(), taskID)
	if err != nil {
		s.logger.Error("query task status failed", "task_id", taskID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to query task status", nil)
		return
	}
	respondSuccess(c, http.StatusOK, record, "")
}
