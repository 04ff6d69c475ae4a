package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
)

// pagedHandler serves canned pages keyed by the incoming cursor.
func pagedHandler(calls *atomic.Int32, pages map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, ok := pages[r.URL.Query().Get("cursor")]
		if !ok {
			http.Error(w, "unexpected cursor", http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	}
}

func collectIDs(t *testing.T, c *Client) []string {
	t.Helper()
	var ids []string
	for raw, err := range c.Paginate(context.Background(), "/items", nil, "data") {
		if err != nil {
			t.Fatalf("Paginate: %v", err)
		}
		var item struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		ids = append(ids, item.ID)
	}
	return ids
}

func TestPaginateStopsOnEmptyPageWithCursor(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, pagedHandler(&calls, map[string]string{
		"":   `{"data":[{"id":"a"},{"id":"b"}],"next_cursor":"c1"}`,
		"c1": `{"data":[{"id":"c"}],"next_cursor":"c2"}`,
		"c2": `{"data":[],"next_cursor":"c3"}`,
	}))

	ids := collectIDs(t, c)
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 page requests, got %d", calls.Load())
	}
}

func TestPaginateStopsWithoutCursor(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, pagedHandler(&calls, map[string]string{
		"":   `{"data":[{"id":"a"}],"next_cursor":"c1"}`,
		"c1": `{"data":[{"id":"b"}]}`,
	}))

	ids := collectIDs(t, c)
	if len(ids) != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls.Load())
	}
}

func TestPaginateEarlyBreakFetchesNoMorePages(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, pagedHandler(&calls, map[string]string{
		"":   `{"data":[{"id":"a"},{"id":"b"}],"next_cursor":"c1"}`,
		"c1": `{"data":[{"id":"c"}]}`,
	}))

	for _, err := range c.Paginate(context.Background(), "/items", nil, "data") {
		if err != nil {
			t.Fatalf("Paginate: %v", err)
		}
		break
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 page request, got %d", calls.Load())
	}
}

func TestPaginateRestartsFromFirstPage(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, pagedHandler(&calls, map[string]string{
		"": `{"data":[{"id":"a"}]}`,
	}))
	seq := c.Paginate(context.Background(), "/items", nil, "data")
	for range 2 {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("Paginate: %v", err)
			}
			n++
		}
		if n != 1 {
			t.Fatalf("expected 1 item, got %d", n)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", calls.Load())
	}
}

func TestPaginateYieldsErrorOnce(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	var errs int
	for _, err := range c.Paginate(context.Background(), "/items", nil, "data") {
		var re *RequestError
		if !errors.As(err, &re) || re.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 RequestError, got %v", err)
		}
		errs++
	}
	if errs != 1 {
		t.Fatalf("expected exactly one error, got %d", errs)
	}
}

func TestPaginateKeepsQuery(t *testing.T) {
	var got []string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.RawQuery)
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"data":[{"id":"a"}],"next_cursor":"n"}`))
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	q := ChannelQuery{FollowerOnly: true}.values()
	for _, err := range c.Paginate(context.Background(), "/items", q, "data") {
		if err != nil {
			t.Fatalf("Paginate: %v", err)
		}
	}
	if len(got) != 2 || got[0] != "is_follower=true" || got[1] != "cursor=n&is_follower=true" {
		t.Fatalf("unexpected queries %v", got)
	}
	if q.Get("cursor") != "" {
		t.Fatal("caller query was mutated")
	}
}
