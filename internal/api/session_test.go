package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/session"
)

func TestCreateSessionSeedsGreeting(t *testing.T) {
	ts, _ := newTestServer(t, fixtureOpts{})

	resp := postJSON(t, ts.URL+"/api/sessions", CreateSessionRequest{Title: "Sales questions"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var sess SessionPayload
	decodeData(t, resp, &sess)
	if sess.Title != "Sales questions" {
		t.Errorf("title = %q", sess.Title)
	}
	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Fatalf("id %q is not a UUID: %v", sess.ID, err)
	}

	msgResp := get(t, ts.URL+"/api/sessions/"+sess.ID+"/messages")
	var msgs []MessagePayload
	decodeData(t, msgResp, &msgs)
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	if msgs[0].Role != string(session.RoleAI) || msgs[0].Content != chat.Greeting {
		t.Errorf("msgs[0] = %s %q, want the greeting", msgs[0].Role, msgs[0].Content)
	}
}

func TestCreateSessionDefaultTitle(t *testing.T) {
	ts, _ := newTestServer(t, fixtureOpts{})

	resp := postJSON(t, ts.URL+"/api/sessions", struct{}{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var sess SessionPayload
	decodeData(t, resp, &sess)
	if sess.Title != "New conversation" {
		t.Errorf("title = %q", sess.Title)
	}
}

func TestListSessions(t *testing.T) {
	ts, _ := newTestServer(t, fixtureOpts{})

	for _, title := range []string{"first", "second", "third"} {
		postJSON(t, ts.URL+"/api/sessions", CreateSessionRequest{Title: title})
	}

	resp := get(t, ts.URL+"/api/sessions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var sessions []SessionPayload
	decodeData(t, resp, &sessions)
	if len(sessions) != 3 {
		t.Errorf("len(sessions) = %d, want 3", len(sessions))
	}

	limited := get(t, ts.URL+"/api/sessions?limit=2")
	var page []SessionPayload
	decodeData(t, limited, &page)
	if len(page) != 2 {
		t.Errorf("len(page) = %d, want 2", len(page))
	}
}

func TestSessionMessagesUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, fixtureOpts{})

	resp := get(t, ts.URL+"/api/sessions/"+uuid.NewString()+"/messages")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if body := decodeError(t, resp); body.Code != "session_not_found" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestSessionMessagesBadID(t *testing.T) {
	ts, _ := newTestServer(t, fixtureOpts{})

	resp := get(t, ts.URL+"/api/sessions/not-a-uuid/messages")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if body := decodeError(t, resp); body.Code != "invalid_session" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	ts, _ := newTestServer(t, fixtureOpts{})

	created := postJSON(t, ts.URL+"/api/sessions", CreateSessionRequest{Title: "doomed"})
	var sess SessionPayload
	decodeData(t, created, &sess)

	del := doRequest(t, http.MethodDelete, ts.URL+"/api/sessions/"+sess.ID)
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", del.StatusCode, http.StatusNoContent)
	}

	gone := get(t, ts.URL+"/api/sessions/"+sess.ID+"/messages")
	if gone.StatusCode != http.StatusNotFound {
		t.Errorf("messages after delete: status = %d, want %d", gone.StatusCode, http.StatusNotFound)
	}

	again := doRequest(t, http.MethodDelete, ts.URL+"/api/sessions/"+sess.ID)
	if again.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want %d", again.StatusCode, http.StatusNotFound)
	}
}
