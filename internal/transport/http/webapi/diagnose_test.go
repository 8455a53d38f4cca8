package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"smartagri-server-go/internal/app/queue"
	"smartagri-server-go/internal/domain/diagnosis"
)

type fakeTaskService struct {
	enqueued []*diagnosis.Task
	statuses map[string]*queue.StatusRecord
	err      error
}

func (f *fakeTaskService) Enqueue(ctx context.Context, task *diagnosis.Task) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	task.ID = "generated-id"
	f.enqueued = append(f.enqueued, task)
	return task.ID, nil
}

func (f *fakeTaskService) Status(ctx context.Context, taskID string) (*queue.StatusRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if record, ok := f.statuses[taskID]; ok {
		return record, nil
	}
	return &queue.StatusRecord{TaskID: taskID, Status: diagnosis.StatePending}, nil
}

func newDiagnoseRouter(tasks TaskService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewDiagnoseService(tasks, nil).Register(engine.Group("/api/v1"))
	return engine
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestCreateDiagnosis(t *testing.T) {
	tasks := &fakeTaskService{}
	router := newDiagnoseRouter(tasks)

	body := `{"image_url": "http://img.example/leaf.jpg", "crop_type": "番茄", "location": "大棚A区"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("success = false: %s", resp.Message)
	}

	data := resp.Data.(map[string]interface{})
	if data["task_id"] != "generated-id" || data["status"] != diagnosis.StatePending {
		t.Errorf("unexpected payload: %v", data)
	}
	if len(tasks.enqueued) != 1 || tasks.enqueued[0].CropType != "番茄" {
		t.Errorf("enqueued tasks: %+v", tasks.enqueued)
	}
}

func TestCreateDiagnosisValidation(t *testing.T) {
	router := newDiagnoseRouter(&fakeTaskService{})

	for _, body := range []string{
		`{}`,
		`{"image_url": "not a url"}`,
		`{"crop_type": "番茄"}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, expected 400", body, rec.Code)
		}
	}
}

func TestCreateDiagnosisQueueFailure(t *testing.T) {
	router := newDiagnoseRouter(&fakeTaskService{err: errors.New("redis down")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose",
		bytes.NewBufferString(`{"image_url": "http://img.example/x.jpg"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500", rec.Code)
	}
}

func TestTaskStatusSuccess(t *testing.T) {
	tasks := &fakeTaskService{statuses: map[string]*queue.StatusRecord{
		"t1": {
			TaskID: "t1",
			Status: diagnosis.StateSuccess,
			Result: &diagnosis.Result{ModelLabel: "powdery_mildew", DiagnosisName: "白粉病"},
		},
	}}
	router := newDiagnoseRouter(tasks)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diagnose/tasks/t1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["status"] != diagnosis.StateSuccess {
		t.Errorf("task status = %v", data["status"])
	}
	result := data["result"].(map[string]interface{})
	if result["diagnosis_name"] != "白粉病" {
		t.Errorf("result = %v", result)
	}
}

func TestTaskStatusUnknownIsPending(t *testing.T) {
	router := newDiagnoseRouter(&fakeTaskService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diagnose/tasks/ghost", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["status"] != diagnosis.StatePending {
		t.Errorf("task status = %v, expected PENDING", data["status"])
	}
}
