package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chatdigest/internal/model"
)

func TestChannelsAdaptsWireShape(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/workspaces/9/chat/channels" {
			http.Error(w, r.URL.Path, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":[
			{"id":"c1","name":" general ","type":"CHANNEL","latest_comment_at":1740830400000,
			 "counts":{"num_unread":4,"mention_count":1,"has_unread":true}},
			{"id":77,"name":"","type":"DM","latest_comment_at":"1740830400000",
			 "members":[{"id":5,"username":"bob"}]}
		]}`))
	}))

	var got []Channel
	for ch, err := range c.Channels(context.Background(), "9", ChannelQuery{}) {
		if err != nil {
			t.Fatalf("Channels: %v", err)
		}
		got = append(got, ch)
	}
	at := time.UnixMilli(1740830400000)
	want := []Channel{
		{ID: "c1", Name: "general", Type: model.ChannelBroadcast, LatestActivity: at, NumUnread: 4, MentionCount: 1, HasUnread: true},
		{ID: "77", Type: model.ChannelDirect, LatestActivity: at, Members: []Member{{ID: "5", Username: "bob"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("channels mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelMessages(t *testing.T) {
	var query string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"messages":[
			{"id":"m1","user_id":5,"content":"hi","date":1740830400000,"replies_count":2},
			{"id":"m2","user":{"id":"6","name":"Carol"},"text":"old field","created_at":"2025-03-01T10:00:00Z","reply_count":1},
			{"id":"m3","user_id":"7","content":"no time"}
		],"next_cursor":"older"}`))
	}))

	msgs, next, err := c.ChannelMessages(context.Background(), "9", "c1", 50, "")
	if err != nil {
		t.Fatalf("ChannelMessages: %v", err)
	}
	if query != "limit=50" {
		t.Fatalf("unexpected query %q", query)
	}
	if next != "older" {
		t.Fatalf("expected cursor older, got %q", next)
	}
	want := []Message{
		{ID: "m1", UserID: "5", Text: "hi", CreatedAt: time.UnixMilli(1740830400000), ReplyCount: 2},
		{ID: "m2", UserID: "6", Username: "Carol", Text: "old field", CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ReplyCount: 1},
		{ID: "m3", UserID: "7", Text: "no time", CreatedAt: testNow},
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestRepliesNotFoundIsEmpty(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	replies, err := c.Replies(context.Background(), "9", "m1")
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies) != 0 {
		t.Fatalf("expected no replies, got %v", replies)
	}
}

func TestRepliesUsesRepliesKey(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"replies":[{"id":"r1","user_id":"2","content":"yes","date":1}]}`))
	}))
	replies, err := c.Replies(context.Background(), "9", "m1")
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies) != 1 || replies[0].ID != "r1" || replies[0].Text != "yes" {
		t.Fatalf("unexpected replies %+v", replies)
	}
}

func TestRepliesOtherFailurePropagates(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadGateway)
	}))
	if _, err := c.Replies(context.Background(), "9", "m1"); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestChannelMembersFailureIsEmpty(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	members, err := c.ChannelMembers(context.Background(), "9", "c1")
	if err != nil {
		t.Fatalf("ChannelMembers: %v", err)
	}
	if members != nil {
		t.Fatalf("expected empty roster, got %v", members)
	}
}

func TestChannelMembersRateLimitSurfaces(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	_, err := c.ChannelMembers(context.Background(), "9", "c1")
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestSendReplyPostsContent(t *testing.T) {
	var method, path string
	var body map[string]string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"data":{"id":"r9","user_id":"1","content":"on it","date":1740830400000}}`))
	}))

	msg, err := c.SendReply(context.Background(), "9", "m1", "on it")
	if err != nil {
		t.Fatalf("SendReply: %v", err)
	}
	if method != http.MethodPost || path != "/api/v3/workspaces/9/chat/messages/m1/replies" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if body["content"] != "on it" {
		t.Fatalf("unexpected body %v", body)
	}
	if msg.ID != "r9" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	if _, err := c.SendMessage(context.Background(), "9", "c1", "  "); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestDeleteMessage(t *testing.T) {
	var method string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	if err := c.DeleteMessage(context.Background(), "9", "m1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if method != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", method)
	}
}

func TestDirectMessageChannel(t *testing.T) {
	var body map[string][]json.Number
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		dec.Decode(&body)
		w.Write([]byte(`{"data":{"id":"dm-1","type":"DM"}}`))
	}))
	ch, err := c.DirectMessageChannel(context.Background(), "9", []string{"42"})
	if err != nil {
		t.Fatalf("DirectMessageChannel: %v", err)
	}
	if ch.ID != "dm-1" || ch.Type != model.ChannelDirect {
		t.Fatalf("unexpected channel %+v", ch)
	}
	if len(body["user_ids"]) != 1 || body["user_ids"][0].String() != "42" {
		t.Fatalf("expected numeric user id, got %v", body)
	}
}

func TestCurrentUserAndWorkspaces(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/user":
			w.Write([]byte(`{"user":{"id":1,"username":"alice","email":"a@example.com"}}`))
		case "/api/v2/team":
			w.Write([]byte(`{"teams":[{"id":"9","name":"Acme","members":[{"user":{"id":2,"username":"bob"}}]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	u, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if diff := cmp.Diff(User{ID: "1", Username: "alice", Email: "a@example.com"}, u); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}
	ws, err := c.Workspaces(context.Background())
	if err != nil {
		t.Fatalf("Workspaces: %v", err)
	}
	want := []Workspace{{ID: "9", Name: "Acme", Members: []Member{{ID: "2", Username: "bob"}}}}
	if diff := cmp.Diff(want, ws); diff != "" {
		t.Fatalf("workspaces mismatch (-want +got):\n%s", diff)
	}
}

type fakeIdentityAPI struct {
	userCalls atomic.Int32
	wsCalls   atomic.Int32
	release   chan struct{}
	teams     []Workspace
}

func (f *fakeIdentityAPI) CurrentUser(ctx context.Context) (User, error) {
	f.userCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return User{ID: "1", Username: "alice"}, nil
}

func (f *fakeIdentityAPI) Workspaces(ctx context.Context) ([]Workspace, error) {
	f.wsCalls.Add(1)
	return f.teams, nil
}

func TestIdentityUserIsMemoised(t *testing.T) {
	api := &fakeIdentityAPI{release: make(chan struct{})}
	id := NewIdentity(api, "", nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := id.User(context.Background())
			if err != nil || u.ID != "1" {
				t.Errorf("User = %+v, %v", u, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(api.release)
	wg.Wait()

	if _, err := id.User(context.Background()); err != nil {
		t.Fatalf("User: %v", err)
	}
	if api.userCalls.Load() != 1 {
		t.Fatalf("expected a single lookup, got %d", api.userCalls.Load())
	}
}

func TestIdentityWorkspace(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		api := &fakeIdentityAPI{}
		ws, err := NewIdentity(api, "42", nil).WorkspaceID(context.Background())
		if err != nil || ws != "42" {
			t.Fatalf("WorkspaceID = %q, %v", ws, err)
		}
		if api.wsCalls.Load() != 0 {
			t.Fatal("configured workspace must not be looked up")
		}
	})
	t.Run("first discovered", func(t *testing.T) {
		api := &fakeIdentityAPI{teams: []Workspace{{ID: "7"}, {ID: "8"}}}
		id := NewIdentity(api, "", nil)
		for range 2 {
			ws, err := id.WorkspaceID(context.Background())
			if err != nil || ws != "7" {
				t.Fatalf("WorkspaceID = %q, %v", ws, err)
			}
		}
		if api.wsCalls.Load() != 1 {
			t.Fatalf("expected one lookup, got %d", api.wsCalls.Load())
		}
	})
	t.Run("none", func(t *testing.T) {
		_, err := NewIdentity(&fakeIdentityAPI{}, "", nil).WorkspaceID(context.Background())
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
	})
}
