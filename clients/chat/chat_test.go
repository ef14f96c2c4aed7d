package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// streamServer emits the given fragments as server-sent completion chunks.
func streamServer(t *testing.T, fragments []string, requests *[][]map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			var body struct {
				Messages []map[string]any `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			*requests = append(*requests, body.Messages)
		}

		w.Header().Set("Content-Type", "text/event-stream")

		for _, fragment := range fragments {
			chunk := map[string]any{
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"delta": map[string]any{"content": fragment}},
				},
			}

			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newTestClient(t *testing.T, url string, maxHistory int) *Client {
	t.Helper()

	client, err := New(&Config{
		APIKey:       "test-key",
		BaseURL:      url + "/v1",
		Model:        "test-model",
		SystemPrompt: "You are a voice assistant.",
		MaxHistory:   maxHistory,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return client
}

func collect(t *testing.T, fragments <-chan string, errc <-chan error) []string {
	t.Helper()

	var got []string
	for fragment := range fragments {
		got = append(got, fragment)
	}

	if err := <-errc; err != nil {
		t.Fatalf("stream error: %v", err)
	}

	return got
}

func TestClient_Stream(t *testing.T) {
	t.Run("fragments arrive in order and the channel closes at the end", func(t *testing.T) {
		server := streamServer(t, []string{"Hi ", "there", "."}, nil)
		defer server.Close()

		client := newTestClient(t, server.URL, 0)

		fragments, errc := client.Stream(context.Background(), "hello")
		got := collect(t, fragments, errc)

		want := []string{"Hi ", "there", "."}
		if len(got) != len(want) {
			t.Fatalf("expected %d fragments, got %d: %v", len(want), len(got), got)
		}

		for i := range want {
			if got[i] != want[i] {
				t.Errorf("fragment %d: expected %q, got %q", i, want[i], got[i])
			}
		}
	})

	t.Run("a completed turn adds the user message and the assembled reply to history", func(t *testing.T) {
		server := streamServer(t, []string{"All ", "done."}, nil)
		defer server.Close()

		client := newTestClient(t, server.URL, 0)

		fragments, errc := client.Stream(context.Background(), "status?")
		collect(t, fragments, errc)

		if client.History() != 2 {
			t.Errorf("expected 2 history messages, got %d", client.History())
		}

		if got := client.history[1].Content; got != "All done." {
			t.Errorf("expected assembled reply in history, got %q", got)
		}
	})

	t.Run("the history window drops the oldest messages first", func(t *testing.T) {
		server := streamServer(t, []string{"ok"}, nil)
		defer server.Close()

		client := newTestClient(t, server.URL, 4)

		for i := 0; i < 5; i++ {
			fragments, errc := client.Stream(context.Background(), fmt.Sprintf("turn %d", i))
			collect(t, fragments, errc)
		}

		if client.History() != 4 {
			t.Errorf("expected history capped at 4, got %d", client.History())
		}

		if got := client.history[0].Content; got != "turn 3" {
			t.Errorf("expected oldest surviving message to be turn 3, got %q", got)
		}
	})

	t.Run("the system prompt leads every request and is not part of the window", func(t *testing.T) {
		var requests [][]map[string]any

		server := streamServer(t, []string{"ok"}, &requests)
		defer server.Close()

		client := newTestClient(t, server.URL, 4)

		fragments, errc := client.Stream(context.Background(), "first")
		collect(t, fragments, errc)

		fragments, errc = client.Stream(context.Background(), "second")
		collect(t, fragments, errc)

		if len(requests) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(requests))
		}

		second := requests[1]
		if second[0]["role"] != "system" {
			t.Errorf("expected leading system message, got %v", second[0])
		}

		// system + first user + first reply + second user
		if len(second) != 4 {
			t.Errorf("expected 4 messages in second request, got %d", len(second))
		}
	})

	t.Run("a failed stream reports on the error channel and leaves history unchanged", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, 0)

		fragments, errc := client.Stream(context.Background(), "hello")
		for range fragments {
		}

		if err := <-errc; err == nil {
			t.Fatal("expected an error")
		}

		if client.History() != 0 {
			t.Errorf("expected empty history after a failed turn, got %d", client.History())
		}
	})

	t.Run("reset clears the history", func(t *testing.T) {
		server := streamServer(t, []string{"ok"}, nil)
		defer server.Close()

		client := newTestClient(t, server.URL, 0)

		fragments, errc := client.Stream(context.Background(), "hello")
		collect(t, fragments, errc)

		client.Reset()

		if client.History() != 0 {
			t.Errorf("expected empty history after reset, got %d", client.History())
		}
	})
}
