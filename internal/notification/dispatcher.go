package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"praxis-website/internal/contact"
	"praxis-website/internal/metrics"
	"praxis-website/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var staffTemplate = template.Must(template.ParseFS(templateFS, "templates/staff_notification.html"))

// Translator renders localized strings
type Translator interface {
	Translate(locale, key string, params map[string]string) string
}

// JobStore is the durable notification queue
type JobStore interface {
	EnqueueNotification(ctx context.Context, job *models.NotificationJob) error
	NextDueNotification(ctx context.Context, now time.Time) (*models.NotificationJob, error)
	ClaimNotification(ctx context.Context, job *models.NotificationJob) (bool, error)
	SaveNotification(ctx context.Context, job *models.NotificationJob) error
	RequeueStaleNotifications(ctx context.Context, cutoff time.Time) (int64, error)
	NotificationStats(ctx context.Context) (map[string]int64, error)
}

// Dispatcher renders staff notifications and queues them for the Worker
type Dispatcher struct {
	store      JobStore
	translator Translator
	recipient  string
	locale     string
	loc        *time.Location
	wake       chan struct{}
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher that mails recipient in locale
func NewDispatcher(store JobStore, translator Translator, recipient, locale string, loc *time.Location, logger *zap.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		store:      store,
		translator: translator,
		recipient:  recipient,
		locale:     locale,
		loc:        loc,
		wake:       make(chan struct{}, 1),
		logger:     logger,
	}
}

// Wake is signalled after each enqueue
func (d *Dispatcher) Wake() <-chan struct{} {
	return d.wake
}

type row struct {
	Label string
	Value string
}

type staffView struct {
	Locale       string
	Subject      string
	Heading      string
	Rows         []row
	MessageLabel string
	Message      string
}

// Dispatch renders the staff email for record and queues it. The reply-to
// address is the submitter's email.
func (d *Dispatcher) Dispatch(ctx context.Context, form *contact.FormData, record *models.FormRequest) error {
	msg, err := d.Render(form, record)
	if err != nil {
		return err
	}

	job := &models.NotificationJob{
		UUID:          msg.ID,
		FormRequestID: record.ID,
		Recipient:     msg.To,
		ReplyTo:       msg.ReplyTo,
		Subject:       msg.Subject,
		HTMLBody:      msg.HTMLBody,
		TextBody:      msg.TextBody,
		Status:        models.JobStatusPending,
	}
	if err := d.store.EnqueueNotification(ctx, job); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	metrics.RecordNotification("enqueued")
	d.logger.Debug("Notification queued", zap.Int64("job_id", job.ID), zap.Uint("form_request_id", record.ID))

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Render builds the message without queueing it
func (d *Dispatcher) Render(form *contact.FormData, record *models.FormRequest) (Message, error) {
	t := func(key string) string { return d.translator.Translate(d.locale, key, nil) }
	none := t("mail.staff.none")
	orNone := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return none
		}
		return s
	}

	reason := form.Reason()
	preferred := none
	if form.HasPreferredDatetime() {
		preferred = form.PreferredDatetime().In(d.loc).Format("02.01.2006 15:04")
	}

	subject := d.translator.Translate(d.locale, "mail.staff.subject", map[string]string{"name": form.FullName()})
	rows := []row{
		{t("mail.staff.reference"), record.Reference()},
		{t("mail.staff.name"), form.FullName()},
		{t("mail.staff.email"), form.Email()},
		{t("mail.staff.phone"), orNone(form.Phone())},
		{t("mail.staff.reason"), reason.Label(d.locale)},
		{t("mail.staff.preferred"), preferred},
		{t("mail.staff.received"), record.CreatedAt.In(d.loc).Format("02.01.2006 15:04")},
	}
	view := staffView{
		Locale:       d.locale,
		Subject:      subject,
		Heading:      t("mail.staff.heading"),
		Rows:         rows,
		MessageLabel: t("mail.staff.message"),
		Message:      form.Message(),
	}

	var buf bytes.Buffer
	if err := staffTemplate.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render staff notification: %w", err)
	}
	html := buf.String()

	text, err := htmlToText(html)
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:       uuid.New().String(),
		To:       d.recipient,
		ReplyTo:  form.Email(),
		Subject:  view.Subject,
		HTMLBody: html,
		TextBody: text,
	}, nil
}

// htmlToText derives the plain text part from the rendered HTML
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse rendered notification: %w", err)
	}

	var lines []string
	doc.Find("body h1, body tr, body h2, body p").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "tr":
			label := strings.TrimSpace(s.Find("th").Text())
			value := strings.TrimSpace(s.Find("td").Text())
			lines = append(lines, label+": "+value)
		case "h1", "h2":
			lines = append(lines, "", strings.TrimSpace(s.Text()), "")
		default:
			lines = append(lines, strings.TrimSpace(s.Text()))
		}
	})
	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n", nil
}
