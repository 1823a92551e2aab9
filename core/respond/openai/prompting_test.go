package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dialcare/callvoice/core/respond"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")

	client, err := NewClient(WithBaseURL(baseURL), WithModel("test-model"))
	if err != nil {
		t.Fatalf("expected client to build, got %v", err)
	}
	return client
}

func TestGenerateParsesStructuredReply(t *testing.T) {
	var captured chatRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected chat completions path, got %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("expected decodable request body, got %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"response":"What time works for you?","end_call":false}`,
				},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	reply, err := client.Generate(context.Background(), "I am free tomorrow",
		respond.WithTurns(
			respond.Turn{Role: respond.RoleAgent, Text: "Hello, this is the clinic."},
			respond.Turn{Role: respond.RoleCaller, Text: "Hi."},
		),
	)
	if err != nil {
		t.Fatalf("expected generate to succeed, got %v", err)
	}
	if reply.Text != "What time works for you?" || reply.ShouldClose {
		t.Fatalf("unexpected reply %+v", reply)
	}

	if captured.Model != "test-model" {
		t.Fatalf("expected configured model, got %q", captured.Model)
	}
	// system + 2 history turns + latest utterance
	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %v", captured.Messages)
	}
	if captured.Messages[0].Role != messageRoleSystem {
		t.Fatalf("expected leading system message, got %v", captured.Messages[0])
	}
	last := captured.Messages[len(captured.Messages)-1]
	if last.Role != messageRoleUser || last.Content != "I am free tomorrow" {
		t.Fatalf("expected latest utterance last, got %v", last)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_schema" {
		t.Fatalf("expected structured output request, got %+v", captured.ResponseFormat)
	}
}

func TestGenerateReportsEndCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"response":"Thank you, goodbye.","end_call":true}`,
				},
			}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	reply, err := client.Generate(context.Background(), "no thanks")
	if err != nil {
		t.Fatalf("expected generate to succeed, got %v", err)
	}
	if !reply.ShouldClose {
		t.Fatalf("expected close signal, got %+v", reply)
	}
}

func TestGenerateNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	if _, err := client.Generate(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for non-OK status")
	}
}

func TestToMessagesMapsRoles(t *testing.T) {
	messages := toMessages("be helpful", []respond.Turn{
		{Role: respond.RoleAgent, Text: "hello"},
		{Role: respond.RoleCaller, Text: "hi"},
	})

	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %v", messages)
	}
	if messages[0].Role != messageRoleSystem || messages[0].Content != "be helpful" {
		t.Fatalf("expected system message, got %v", messages[0])
	}
	if messages[1].Role != messageRoleAssistant {
		t.Fatalf("expected agent turn as assistant, got %v", messages[1])
	}
	if messages[2].Role != messageRoleUser {
		t.Fatalf("expected caller turn as user, got %v", messages[2])
	}
}
