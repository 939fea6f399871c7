// Package search indexes contact form submissions in Meilisearch for the
// admin lookup.
package search

import (
	"context"
	"errors"
	"strings"

	"praxis-website/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

// ErrDisabled is returned when no search host is configured
var ErrDisabled = errors.New("search is not configured")

// SubmissionDocument is the indexed form of a FormRequest
type SubmissionDocument struct {
	ID        uint   `json:"id"`
	Reference string `json:"reference"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Message   string `json:"message,omitempty"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
}

// NewSubmissionDocument flattens a FormRequest for indexing
func NewSubmissionDocument(fr *models.FormRequest) SubmissionDocument {
	doc := SubmissionDocument{
		ID:        fr.ID,
		Reference: fr.Reference(),
		FullName:  fr.FullName,
		Email:     fr.Email,
		CreatedAt: fr.CreatedAt.Unix(),
	}
	if fr.Phone != nil {
		doc.Phone = *fr.Phone
	}
	if fr.Message != nil {
		doc.Message = *fr.Message
	}
	if fr.ContactReason != nil {
		doc.Reason = string(fr.ContactReason.Key)
	}
	return doc
}

type SubmissionIndex struct {
	client *meilisearch.Client
	index  string
}

// NewSubmissionIndex returns nil when host is empty; a nil index reports
// ErrDisabled from every call.
func NewSubmissionIndex(host, apiKey, index string) *SubmissionIndex {
	if host == "" {
		return nil
	}
	if index == "" {
		index = "form_requests"
	}
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SubmissionIndex{
		client: client,
		index:  index,
	}
}

// Enabled reports whether the index is configured
func (s *SubmissionIndex) Enabled() bool {
	return s != nil
}

// InitIndex initializes the Meilisearch index
func (s *SubmissionIndex) InitIndex() error {
	if s == nil {
		return ErrDisabled
	}
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"reference",
		"full_name",
		"email",
		"phone",
		"message",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"reason",
		"created_at",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"created_at",
	})
	return err
}

// IndexSubmission indexes a single submission
func (s *SubmissionIndex) IndexSubmission(ctx context.Context, fr *models.FormRequest) error {
	if s == nil {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.Index(s.index).AddDocuments([]SubmissionDocument{NewSubmissionDocument(fr)}, "id")
	return err
}

// IndexSubmissions indexes multiple submissions
func (s *SubmissionIndex) IndexSubmissions(ctx context.Context, records []models.FormRequest) error {
	if s == nil {
		return ErrDisabled
	}
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	docs := make([]SubmissionDocument, len(records))
	for i := range records {
		docs[i] = NewSubmissionDocument(&records[i])
	}
	_, err := s.client.Index(s.index).AddDocuments(docs, "id")
	return err
}

// SearchRequest represents search parameters
type SearchRequest struct {
	Query  string
	Reason string
	Limit  int64
	Offset int64
}

// SearchResult lists matching submission ids, newest first
type SearchResult struct {
	IDs            []uint
	TotalHits      int64
	ProcessingTime int64
}

// Search finds submissions matching the query
func (s *SubmissionIndex) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:                req.Limit,
		Offset:               req.Offset,
		Sort:                 []string{"created_at:desc"},
		AttributesToRetrieve: []string{"id"},
	}
	if req.Reason != "" {
		searchReq.Filter = "reason = '" + strings.ReplaceAll(req.Reason, "'", "") + "'"
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := hitMap["id"].(float64); ok && id > 0 {
			ids = append(ids, uint(id))
		}
	}

	return &SearchResult{
		IDs:            ids,
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}
