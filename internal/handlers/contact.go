package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"praxis-website/internal/contact"
	"praxis-website/internal/locale"
	"praxis-website/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Translator renders catalog messages
type Translator interface {
	Translate(locale, key string, params map[string]string) string
}

// ReasonStore lists contact reasons
type ReasonStore interface {
	ListContactReasons(ctx context.Context, activeOnly bool) ([]models.ContactReason, error)
}

// maxFormBody bounds the submitted body
const maxFormBody = 64 << 10

// ContactHandler serves the contact form endpoints
type ContactHandler struct {
	service       *contact.Service
	reasons       ReasonStore
	translator    Translator
	defaultLocale string
	logger        *zap.Logger
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service *contact.Service, reasons ReasonStore, tr Translator, defaultLocale string, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		service:       service,
		reasons:       reasons,
		translator:    tr,
		defaultLocale: defaultLocale,
		logger:        logger,
	}
}

// ReasonView is a contact reason in the request locale
type ReasonView struct {
	ID    uint   `json:"id"`
	Key   string `json:"key"`
	Label string `json:"label"`
}

func (h *ContactHandler) localizedReasons(ctx context.Context, loc string) ([]ReasonView, error) {
	reasons, err := h.reasons.ListContactReasons(ctx, true)
	if err != nil {
		return nil, err
	}
	views := make([]ReasonView, 0, len(reasons))
	for i := range reasons {
		views = append(views, ReasonView{
			ID:    reasons[i].ID,
			Key:   string(reasons[i].Key),
			Label: reasons[i].Label(loc),
		})
	}
	return views, nil
}

// GetReasons returns the active contact reasons
func (h *ContactHandler) GetReasons(c *gin.Context) {
	loc := locale.FromContext(c.Request.Context(), h.defaultLocale)
	views, err := h.localizedReasons(c.Request.Context(), loc)
	if err != nil {
		h.logger.Error("Failed to list contact reasons", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.translator.Translate(loc, "contact.failure", nil)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"locale":  loc,
		"reasons": views,
	})
}

// Submit accepts a contact form as JSON or form encoded body
func (h *ContactHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	loc := locale.FromContext(ctx, h.defaultLocale)

	raw, err := readForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.translator.Translate(loc, "errors.bad_request", nil)})
		return
	}

	record, err := h.service.Process(ctx, loc, raw)
	if err != nil {
		var verrs contact.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs.ByField()})
			return
		}
		// details are logged by the service
		c.JSON(http.StatusInternalServerError, gin.H{"error": h.translator.Translate(loc, "contact.failure", nil)})
		return
	}

	reference := record.Reference()
	message := h.translator.Translate(loc, "contact.success", nil) + " " +
		h.translator.Translate(loc, "contact.reference", map[string]string{"reference": reference})
	c.JSON(http.StatusCreated, gin.H{
		"id":        record.ID,
		"reference": reference,
		"message":   message,
	})
}

// readForm decodes the request body into raw field values
func readForm(c *gin.Context) (map[string]any, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFormBody)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		raw := make(map[string]any)
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	raw := make(map[string]any, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}
	return raw, nil
}
