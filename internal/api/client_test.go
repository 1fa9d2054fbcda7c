package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSubmitSendsTokenAndPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Path != "/media/talk.mp3" {
			t.Fatalf("unexpected path: %q", req.Path)
		}
		if req.Diarize == nil || *req.Diarize {
			t.Fatalf("expected diarize false, got %v", req.Diarize)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TaskResponse{Task: TaskView{ID: 11, Title: "Talk", Status: "queued"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sekrit")
	diarize := false
	view, err := client.Submit(context.Background(), SubmitRequest{Path: "/media/talk.mp3", Diarize: &diarize})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view == nil || view.ID != 11 || view.Title != "Talk" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestClientListPassesStatusFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "failed" {
			t.Fatalf("unexpected status filter: %q", got)
		}
		json.NewEncoder(w).Encode(TaskListResponse{Tasks: []TaskView{{ID: 2, Status: "failed"}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	tasks, err := client.List(context.Background(), "failed")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != 2 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestClientDescribeMissingReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "task not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	view, err := client.Describe(context.Background(), 42)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view for 404, got %+v", view)
	}
}

func TestClientDecodesErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "task has not completed", Kind: "pending"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, _, err := client.Result(context.Background(), 7, "srt")
	if err == nil {
		t.Fatal("expected error for conflict response")
	}
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status code: %d", statusErr.StatusCode)
	}
	if statusErr.Message != "task has not completed" || statusErr.Kind != "pending" {
		t.Fatalf("unexpected error payload: %+v", statusErr)
	}
}

func TestClientResultReturnsBodyAndContentType(t *testing.T) {
	const body = "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks/7/result" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("format"); got != "srt" {
			t.Fatalf("unexpected format: %q", got)
		}
		w.Header().Set("Content-Type", "application/x-subrip")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	data, contentType, err := client.Result(context.Background(), 7, "srt")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if contentType != "application/x-subrip" {
		t.Fatalf("unexpected content type: %q", contentType)
	}
	if string(data) != body {
		t.Fatalf("unexpected body: %q", data)
	}
}

func TestClientBareAddressGetsScheme(t *testing.T) {
	client := NewClient("127.0.0.1:7517", "")
	if client.baseURL != "http://127.0.0.1:7517" {
		t.Fatalf("unexpected base url: %q", client.baseURL)
	}
}

func TestClientUnconfiguredAddressFails(t *testing.T) {
	client := NewClient("", "")
	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured address")
	}
}
