package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"praxis-website/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeili struct {
	*httptest.Server
	documents []map[string]interface{}
	searches  []map[string]interface{}
}

func newFakeMeili(t *testing.T) *fakeMeili {
	f := &fakeMeili{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/indexes/form_requests/documents":
			var docs []map[string]interface{}
			json.Unmarshal(body, &docs)
			f.documents = append(f.documents, docs...)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"taskUid":1,"indexUid":"form_requests","status":"enqueued","type":"documentAdditionOrUpdate"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/indexes/form_requests/search":
			var req map[string]interface{}
			json.Unmarshal(body, &req)
			f.searches = append(f.searches, req)
			w.Write([]byte(`{"hits":[{"id":12},{"id":7}],"estimatedTotalHits":2,"processingTimeMs":1,"query":"keller"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found","code":"not_found","type":"invalid_request","link":""}`))
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func TestNewSubmissionIndex_DisabledWithoutHost(t *testing.T) {
	idx := NewSubmissionIndex("", "", "")
	assert.False(t, idx.Enabled())
	assert.ErrorIs(t, idx.IndexSubmission(context.Background(), &models.FormRequest{}), ErrDisabled)
	_, err := idx.Search(context.Background(), SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestIndexSubmission(t *testing.T) {
	f := newFakeMeili(t)
	idx := NewSubmissionIndex(f.URL, "key", "form_requests")
	require.True(t, idx.Enabled())

	phone := "+49 30 1234567"
	fr := &models.FormRequest{
		ID:            12,
		FullName:      "Anna Schmidt",
		Email:         "anna@example.de",
		Phone:         &phone,
		ContactReason: &models.ContactReason{Key: models.ReasonAppointment},
		CreatedAt:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, idx.IndexSubmission(context.Background(), fr))

	require.Len(t, f.documents, 1)
	doc := f.documents[0]
	assert.Equal(t, float64(12), doc["id"])
	assert.Equal(t, "KA-000012", doc["reference"])
	assert.Equal(t, "appointment", doc["reason"])
	assert.Equal(t, phone, doc["phone"])
	assert.NotContains(t, doc, "message")
}

func TestSearch(t *testing.T) {
	f := newFakeMeili(t)
	idx := NewSubmissionIndex(f.URL, "key", "")

	res, err := idx.Search(context.Background(), SearchRequest{Query: "keller", Reason: "appointment"})
	require.NoError(t, err)
	assert.Equal(t, []uint{12, 7}, res.IDs)
	assert.Equal(t, int64(2), res.TotalHits)

	require.Len(t, f.searches, 1)
	assert.Equal(t, "keller", f.searches[0]["q"])
	assert.Equal(t, "reason = 'appointment'", f.searches[0]["filter"])
	assert.Equal(t, float64(20), f.searches[0]["limit"])
}
