package msgtool_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/khsu/mailcat/internal/msgtool"
)

func TestHealthSendsCredentialHeaders(t *testing.T) {
	var gotUser, gotPassword string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotUser = r.Header.Get("X-User")
			gotPassword = r.Header.Get("X-Password")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "secret")
	st, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if st.Status != "ok" {
		t.Errorf("expected status ok, got %q", st.Status)
	}
	if gotUser != "luna" || gotPassword != "secret" {
		t.Errorf("credentials not sent: user=%q password=%q", gotUser, gotPassword)
	}
}

func TestInboxQueryParameters(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"messages": []map[string]string{
					{"id": "m1", "from": "bob", "msg": "hi"},
				},
			})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "pw")
	msgs, err := c.Inbox(context.Background(), true, 10)
	if err != nil {
		t.Fatalf("listing inbox: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" || msgs[0].From != "bob" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if gotQuery != "limit=10&unread=1" {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestSendPostsJSONBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true, "id": "m9",
			})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "pw")
	st, err := c.Send(context.Background(), "bob", "hi there", "m1")
	if err != nil {
		t.Fatalf("sending: %v", err)
	}
	if !st.OK || st.ID != "m9" {
		t.Errorf("unexpected status %+v", st)
	}
	if gotPath != "/send" {
		t.Errorf("unexpected path %q", gotPath)
	}
	want := map[string]string{"to": "bob", "msg": "hi there", "reply_to": "m1"}
	for k, v := range want {
		if gotBody[k] != v {
			t.Errorf("body[%q] = %q, want %q", k, gotBody[k], v)
		}
	}
}

func TestSendOmitsEmptyReplyTo(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "pw")
	if _, err := c.Send(context.Background(), "bob", "hi", ""); err != nil {
		t.Fatalf("sending: %v", err)
	}
	if _, present := gotBody["reply_to"]; present {
		t.Error("reply_to should be omitted when empty")
	}
}

func TestReadEscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id": "m1", "msg": "hello",
			})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "pw")
	msg, err := c.Read(context.Background(), "m1")
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if msg.Msg != "hello" {
		t.Errorf("unexpected message %+v", msg)
	}
	if gotPath != "/read/m1" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestServerErrorPayloadSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "no such message",
			})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "pw")
	_, err := c.Read(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Error(); !strings.Contains(got, "no such message") {
		t.Errorf("error should carry the server message, got %q", got)
	}
}

func TestRegister(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "", "")
	st, err := c.Register(context.Background(), "newuser", "pass123", "New User")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if !st.OK {
		t.Errorf("unexpected status %+v", st)
	}
	if gotBody["username"] != "newuser" || gotBody["display_name"] != "New User" {
		t.Errorf("unexpected body %v", gotBody)
	}
}

func TestUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"users": []map[string]string{
					{"username": "luna", "display_name": "Luna"},
					{"username": "bob"},
				},
			})
		},
	))
	defer srv.Close()

	c := msgtool.NewClient(srv.URL, "luna", "pw")
	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("listing users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "luna" || users[1].Username != "bob" {
		t.Fatalf("unexpected users %+v", users)
	}
}
