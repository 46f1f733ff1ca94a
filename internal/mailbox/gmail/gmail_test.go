package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"memberverify/internal/verification/matcher"
)

func newTestMailbox(t *testing.T, handler http.HandlerFunc) *Mailbox {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := gmailapi.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return NewWithService(svc)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "from:@corp.example to:verify@union.example is:unread",
		SearchQuery(matcher.Query{FromDomain: "corp.example", To: "verify@union.example"}))
	assert.Equal(t, "from:@corp.example is:unread", SearchQuery(matcher.Query{FromDomain: "corp.example"}))
}

func TestListUnread(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages"))
		assert.Equal(t, "from:@corp.example to:verify@union.example is:unread", r.URL.Query().Get("q"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
		writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "a"}, {"id": "b"}}})
	})

	ids, err := mb.ListUnread(context.Background(), matcher.Query{FromDomain: "corp.example", To: "verify@union.example", MaxResults: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFetchReadsMetadataHeaders(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/m1"))
		assert.Equal(t, "metadata", r.URL.Query().Get("format"))
		writeJSON(w, map[string]any{
			"id":      "m1",
			"snippet": "AB123456",
			"payload": map[string]any{"headers": []map[string]string{
				{"name": "From", "value": "jovan.petrovic@corp.example"},
				{"name": "subject", "value": "verify"},
				{"name": "Date", "value": "Mon, 1 Jun 2026 08:00:00 +0000"},
			}},
		})
	})

	msg, err := mb.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, &matcher.Message{
		ID:      "m1",
		From:    "jovan.petrovic@corp.example",
		Subject: "verify",
		Date:    "Mon, 1 Jun 2026 08:00:00 +0000",
		Snippet: "AB123456",
	}, msg)
}

func TestMarkReadRemovesUnreadLabel(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/m1/modify"))
		var body gmailapi.ModifyMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"UNREAD"}, body.RemoveLabelIds)
		writeJSON(w, map[string]any{"id": "m1"})
	})

	require.NoError(t, mb.MarkRead(context.Background(), "m1"))
}

func TestErrorsAreWrapped(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 400, "message": "invalid query"}})
	})

	_, err := mb.ListUnread(context.Background(), matcher.Query{FromDomain: "corp.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list messages")
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), "id", "", "refresh")
	assert.Error(t, err)
}
