package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/infrastructure/memory"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/transport/http/handler"
	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

const templateBody = `{
	"name": "Onboarding",
	"description": "First week onboarding journey",
	"actions": [
		{"type": "email", "order": 0, "delay": 3600,
		 "config": {"to": "ada@example.com", "subject": "Welcome", "body": "Hello"}},
		{"type": "chat", "order": 1, "delay": 0,
		 "config": {"to": "+15550001111", "message": "Ping"}}
	]
}`

const employeeBody = `{"name": "Ada Lovelace", "email": "ada@example.com", "phone": "+15550001111"}`

func newTestEngine() *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	employeeRepo := memory.NewEmployeeRepository()
	templateRepo := memory.NewTemplateRepository()
	instanceRepo := memory.NewInstanceRepository()
	q := queue.New(queue.NewMemoryStore(), queue.Config{Clock: func() time.Time { return now }})

	employees := usecase.NewEmployeeUsecase(employeeRepo)
	journeys := usecase.NewJourneyUsecase(employeeRepo, templateRepo, instanceRepo, q)

	th := handler.NewTemplateHandler(usecase.NewTemplateUsecase(templateRepo), logger)
	eh := handler.NewEmployeeHandler(employees, journeys, logger)
	ih := handler.NewInstanceHandler(journeys, logger)
	jh := handler.NewJobHandler(usecase.NewQueueUsecase(q, memory.NewAttemptRepository()), logger)

	r := gin.New()
	r.POST("/journeys", th.Create)
	r.GET("/journeys", th.List)
	r.GET("/journeys/:id", th.GetByID)
	r.POST("/employees", eh.Create)
	r.GET("/employees", eh.List)
	r.GET("/employees/:id", eh.GetByID)
	r.GET("/employees/:id/journeys", eh.Journeys)
	r.POST("/employees/:id/journeys", eh.Enroll)
	r.POST("/employee-journeys", ih.Create)
	r.GET("/employee-journeys/:id", ih.GetByID)
	r.GET("/jobs", jh.List)
	r.DELETE("/jobs", jh.Clear)
	r.GET("/jobs/:id", jh.GetByID)
	r.DELETE("/jobs/:id", jh.Remove)
	r.GET("/jobs/:id/attempts", jh.Attempts)
	r.GET("/queues", jh.Stats)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func create(t *testing.T, r *gin.Engine, path, body string) string {
	t.Helper()
	w := do(r, http.MethodPost, path, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST %s: status = %d, body = %s", path, w.Code, w.Body.String())
	}
	id, _ := decode(t, w)["id"].(string)
	if id == "" {
		t.Fatalf("POST %s: missing id", path)
	}
	return id
}

// ---- templates ----

func TestCreateTemplate_Returns201WithOrderedActions(t *testing.T) {
	r := newTestEngine()
	w := do(r, http.MethodPost, "/journeys", templateBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	actions, _ := body["actions"].([]any)
	if len(actions) != 2 {
		t.Fatalf("actions = %v, want 2", body["actions"])
	}
	first := actions[0].(map[string]any)
	if first["type"] != "email" || first["delay"] != float64(3600) {
		t.Errorf("first action = %v", first)
	}
	if first["id"] == "" {
		t.Error("expected a generated action id")
	}
}

func TestCreateTemplate_InvalidAction_Returns400WithField(t *testing.T) {
	r := newTestEngine()
	body := strings.Replace(templateBody, `"to": "ada@example.com"`, `"to": "not-an-email"`, 1)

	w := do(r, http.MethodPost, "/journeys", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decode(t, w)["field"]; got != "config.to" {
		t.Errorf("field = %v, want config.to", got)
	}
}

func TestCreateTemplate_InvalidJSON_Returns400(t *testing.T) {
	w := do(newTestEngine(), http.MethodPost, "/journeys", `{bad json}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetTemplate_Unknown_Returns404(t *testing.T) {
	w := do(newTestEngine(), http.MethodGet, "/journeys/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListTemplates(t *testing.T) {
	r := newTestEngine()
	create(t, r, "/journeys", templateBody)

	w := do(r, http.MethodGet, "/journeys?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if list, _ := decode(t, w)["journeys"].([]any); len(list) != 1 {
		t.Errorf("journeys = %d, want 1", len(list))
	}
}

// ---- employees ----

func TestCreateEmployee_DuplicateEmail_Returns409(t *testing.T) {
	r := newTestEngine()
	create(t, r, "/employees", employeeBody)

	w := do(r, http.MethodPost, "/employees", employeeBody)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreateEmployee_MissingName_Returns400(t *testing.T) {
	w := do(newTestEngine(), http.MethodPost, "/employees", `{"email":"ada@example.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetEmployee(t *testing.T) {
	r := newTestEngine()
	id := create(t, r, "/employees", employeeBody)

	w := do(r, http.MethodGet, "/employees/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decode(t, w)["email"]; got != "ada@example.com" {
		t.Errorf("email = %v", got)
	}

	for _, path := range []string{"/employees/missing", "/employees/missing/journeys"} {
		if w := do(r, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", path, w.Code)
		}
	}
}

// ---- enrollment ----

func TestEnroll_QueuesFirstAction(t *testing.T) {
	r := newTestEngine()
	tplID := create(t, r, "/journeys", templateBody)
	empID := create(t, r, "/employees", employeeBody)

	w := do(r, http.MethodPost, "/employee-journeys",
		`{"employeeId":"`+empID+`","journeyTemplateId":"`+tplID+`","startDate":"2026-03-10"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	inst := decode(t, w)
	if inst["status"] != "pending" || inst["currentActionIndex"] != float64(0) {
		t.Errorf("instance = %v", inst)
	}
	instID := inst["id"].(string)

	w = do(r, http.MethodGet, "/jobs?state=waiting&employeeJourneyId="+instID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list jobs: status = %d", w.Code)
	}
	jobs, _ := decode(t, w)["jobs"].([]any)
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	job := jobs[0].(map[string]any)
	if job["channel"] != "email" {
		t.Errorf("channel = %v, want email", job["channel"])
	}
	if want := now.Add(time.Hour).Format(time.RFC3339); job["notBefore"] != want {
		t.Errorf("notBefore = %v, want %s", job["notBefore"], want)
	}

	w = do(r, http.MethodGet, "/employees/"+empID+"/journeys", "")
	if list, _ := decode(t, w)["employeeJourneys"].([]any); len(list) != 1 {
		t.Errorf("employee journeys = %d, want 1", len(list))
	}
}

func TestEnroll_ViaEmployeePath(t *testing.T) {
	r := newTestEngine()
	tplID := create(t, r, "/journeys", templateBody)
	empID := create(t, r, "/employees", employeeBody)

	instID := create(t, r, "/employees/"+empID+"/journeys",
		`{"journeyTemplateId":"`+tplID+`","startDate":"2026-03-10T09:00:00Z"}`)

	w := do(r, http.MethodGet, "/employee-journeys/"+instID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decode(t, w)["employeeId"]; got != empID {
		t.Errorf("employeeId = %v, want %s", got, empID)
	}
}

func TestEnroll_Rejects(t *testing.T) {
	r := newTestEngine()
	tplID := create(t, r, "/journeys", templateBody)
	empID := create(t, r, "/employees", employeeBody)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad start date", `{"employeeId":"` + empID + `","journeyTemplateId":"` + tplID + `","startDate":"tomorrow"}`, http.StatusBadRequest},
		{"unknown employee", `{"employeeId":"nope","journeyTemplateId":"` + tplID + `","startDate":"2026-03-10"}`, http.StatusNotFound},
		{"unknown template", `{"employeeId":"` + empID + `","journeyTemplateId":"nope","startDate":"2026-03-10"}`, http.StatusNotFound},
		{"unknown schedule key", `{"employeeId":"` + empID + `","journeyTemplateId":"` + tplID + `","startDate":"2026-03-10","actionSchedules":{"ghost":"2026-03-11T09:00:00Z"}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/employee-journeys", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ---- jobs ----

func TestJobs_InvalidState_Returns400(t *testing.T) {
	w := do(newTestEngine(), http.MethodGet, "/jobs?state=sleeping", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestJobs_RemoveAndStats(t *testing.T) {
	r := newTestEngine()
	tplID := create(t, r, "/journeys", templateBody)
	empID := create(t, r, "/employees", employeeBody)
	create(t, r, "/employee-journeys", `{"employeeId":"`+empID+`","journeyTemplateId":"`+tplID+`","startDate":"2026-03-10"}`)

	w := do(r, http.MethodGet, "/queues", "")
	stats := decode(t, w)
	if stats["waiting"] != float64(1) || stats["total"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}

	jobs, _ := decode(t, do(r, http.MethodGet, "/jobs", ""))["jobs"].([]any)
	jobID := jobs[0].(map[string]any)["id"].(string)

	if w := do(r, http.MethodGet, "/jobs/"+jobID+"/attempts", ""); w.Code != http.StatusOK {
		t.Errorf("attempts: status = %d, want 200", w.Code)
	}
	if w := do(r, http.MethodDelete, "/jobs/"+jobID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("remove: status = %d, want 204", w.Code)
	}
	if w := do(r, http.MethodGet, "/jobs/"+jobID, ""); w.Code != http.StatusNotFound {
		t.Errorf("get removed: status = %d, want 404", w.Code)
	}
	if w := do(r, http.MethodGet, "/jobs/"+jobID+"/attempts", ""); w.Code != http.StatusNotFound {
		t.Errorf("attempts of removed: status = %d, want 404", w.Code)
	}
}

func TestJobs_Clear(t *testing.T) {
	r := newTestEngine()
	tplID := create(t, r, "/journeys", templateBody)
	empID := create(t, r, "/employees", employeeBody)
	create(t, r, "/employee-journeys", `{"employeeId":"`+empID+`","journeyTemplateId":"`+tplID+`","startDate":"2026-03-10"}`)

	w := do(r, http.MethodDelete, "/jobs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := decode(t, w)["removed"]; got != float64(1) {
		t.Errorf("removed = %v, want 1", got)
	}
}
