package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, payload
}

func TestHealthEndpoint(t *testing.T) {
	env := newChatTestEnv(t)

	resp, payload := doJSON(t, http.MethodGet, env.srv.URL+"/up", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(payload) != "OK" {
		t.Fatalf("body = %q, want OK", payload)
	}
}

func TestHTTPSendMessageCreatesRoomAndPersists(t *testing.T) {
	env := newChatTestEnv(t)

	resp, payload := doJSON(t, http.MethodPost, env.srv.URL+"/chat/message", env.token(t, 3),
		map[string]any{"recipient_id": 7, "content": "offline hello"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", resp.StatusCode, payload)
	}

	var sent struct {
		Room     string `json:"room"`
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Message  string `json:"message"`
		Read     bool   `json:"read"`
	}
	if err := json.Unmarshal(payload, &sent); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sent.Room != "3_7" || sent.Username != "ada" || sent.Message != "offline hello" {
		t.Fatalf("response = %+v, want ada's message in room 3_7", sent)
	}
	if sent.ID <= 0 || sent.Read {
		t.Fatalf("response = %+v, want unread message with assigned id", sent)
	}

	resp, payload = doJSON(t, http.MethodGet, env.srv.URL+"/chat/messages?room_name=3_7", env.token(t, 7), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200: %s", resp.StatusCode, payload)
	}
	var listed struct {
		Room     string `json:"room"`
		Messages []struct {
			ID      int64  `json:"id"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(payload, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Messages) != 1 || listed.Messages[0].ID != sent.ID {
		t.Fatalf("listed = %+v, want the sent message", listed)
	}
}

func TestHTTPSendMessageDoesNotBroadcast(t *testing.T) {
	env := newChatTestEnv(t)

	lin, _ := env.openChat(t, "3_7", env.token(t, 7))

	resp, payload := doJSON(t, http.MethodPost, env.srv.URL+"/chat/message", env.token(t, 3),
		map[string]any{"recipient_id": 7, "content": "no live delivery"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", resp.StatusCode, payload)
	}

	// The open socket stays silent; the message is history-only.
	done := make(chan wsTestEvent, 1)
	go func() {
		var got wsTestEvent
		if err := json.NewDecoder(lin).Decode(&got); err == nil {
			done <- got
		}
	}()
	select {
	case got := <-done:
		t.Fatalf("unexpected live frame: %+v", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHTTPSendMessageRequiresAuth(t *testing.T) {
	env := newChatTestEnv(t)

	for name, token := range map[string]string{
		"missing token": "",
		"invalid token": "not-a-token",
		"inactive user": env.token(t, 9),
	} {
		resp, _ := doJSON(t, http.MethodPost, env.srv.URL+"/chat/message", token,
			map[string]any{"recipient_id": 7, "content": "hi"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, resp.StatusCode)
		}
	}
}

func TestHTTPSendMessageValidation(t *testing.T) {
	env := newChatTestEnv(t)

	cases := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{"empty content", map[string]any{"recipient_id": 7, "content": "  "}, http.StatusBadRequest},
		{"self recipient", map[string]any{"recipient_id": 3, "content": "hi"}, http.StatusBadRequest},
		{"missing recipient", map[string]any{"content": "hi"}, http.StatusBadRequest},
		{"unknown recipient", map[string]any{"recipient_id": 99, "content": "hi"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		resp, payload := doJSON(t, http.MethodPost, env.srv.URL+"/chat/message", env.token(t, 3), tc.body)
		if resp.StatusCode != tc.wantStatus {
			t.Fatalf("%s: status = %d, want %d: %s", tc.name, resp.StatusCode, tc.wantStatus, payload)
		}
	}
}

func TestHTTPListMessagesEnforcesMembership(t *testing.T) {
	env := newChatTestEnv(t)

	resp, _ := doJSON(t, http.MethodPost, env.srv.URL+"/chat/message", env.token(t, 3),
		map[string]any{"recipient_id": 7, "content": "between 3 and 7"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed status = %d, want 201", resp.StatusCode)
	}

	// kim is a valid user but not in the 3_7 pair.
	resp, _ = doJSON(t, http.MethodGet, env.srv.URL+"/chat/messages?room_name=3_7", env.token(t, 5), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHTTPListMessagesValidation(t *testing.T) {
	env := newChatTestEnv(t)

	for name, tc := range map[string]struct {
		query      string
		wantStatus int
	}{
		"missing room_name":   {"", http.StatusBadRequest},
		"malformed key":       {"?room_name=abc", http.StatusBadRequest},
		"reversed key":        {"?room_name=7_3", http.StatusBadRequest},
		"unknown pair member": {"?room_name=3_99", http.StatusNotFound},
	} {
		resp, payload := doJSON(t, http.MethodGet, env.srv.URL+"/chat/messages"+tc.query, env.token(t, 3), nil)
		if resp.StatusCode != tc.wantStatus {
			t.Fatalf("%s: status = %d, want %d: %s", name, resp.StatusCode, tc.wantStatus, payload)
		}
	}
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	env := newChatTestEnv(t)

	resp, _ := doJSON(t, http.MethodGet, env.srv.URL+"/chat/message", env.token(t, 3), nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("send status = %d, want 405", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, env.srv.URL+"/chat/messages?room_name=3_7", env.token(t, 3), nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("list status = %d, want 405", resp.StatusCode)
	}
}
