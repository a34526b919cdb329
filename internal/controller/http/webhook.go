package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	commentpolicy "github.com/vadim/insta-inbox/internal/domain/comment/policy"
	directpolicy "github.com/vadim/insta-inbox/internal/domain/direct/policy"
	"github.com/vadim/insta-inbox/internal/httpx/response"
	"github.com/vadim/insta-inbox/internal/httpx/upstream/instagram"
)

// WebhookDirectPolicy defines the direct-message ingestion interface
type WebhookDirectPolicy interface {
	IngestMessage(ctx context.Context, in directpolicy.IngestMessageInput) error
}

// WebhookCommentPolicy defines the comment ingestion interface
type WebhookCommentPolicy interface {
	IngestComment(ctx context.Context, in commentpolicy.IngestCommentInput) error
}

// WebhookHandler handles platform webhook verification and event delivery
type WebhookHandler struct {
	verifyToken string
	direct      WebhookDirectPolicy
	comments    WebhookCommentPolicy
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(verifyToken string, direct WebhookDirectPolicy, comments WebhookCommentPolicy) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		direct:      direct,
		comments:    comments,
	}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Route("/webhook", func(r chi.Router) {
		r.Get("/", h.Verify())
		r.Post("/", h.Receive())
	})
}

// Verify handles GET /webhook, the platform's subscription handshake. The
// challenge must echo back as a plain body, not JSON.
func (h *WebhookHandler) Verify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode != "subscribe" || token != h.verifyToken {
			response.Forbidden(w, "verification failed")
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
	}
}

// ReceiveResponse acknowledges an event delivery
type ReceiveResponse struct {
	Received bool `json:"received"`
	Ignored  bool `json:"ignored,omitempty"`
}

// Receive handles POST /webhook, the platform's event delivery
func (h *WebhookHandler) Receive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event instagram.WebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		// Other object types share the endpoint; acknowledge and drop them
		if event.Object != instagram.WebhookObject {
			response.OK(w, ReceiveResponse{Received: true, Ignored: true})
			return
		}

		for _, entry := range event.Entry {
			if err := h.processEntry(r.Context(), entry); err != nil {
				response.InternalError(w, "failed to process webhook event")
				return
			}
		}

		response.OK(w, ReceiveResponse{Received: true})
	}
}

// processEntry dispatches one account's batch of events
func (h *WebhookHandler) processEntry(ctx context.Context, entry instagram.WebhookEntry) error {
	for _, change := range entry.Changes {
		if change.Field != instagram.WebhookFieldComments {
			continue
		}
		if err := h.ingestComment(ctx, entry.ID, change.Value); err != nil {
			return err
		}
	}

	for _, m := range entry.Messaging {
		if m.Message == nil {
			continue
		}
		if err := h.ingestMessage(ctx, entry.ID, m); err != nil {
			return err
		}
	}

	return nil
}

func (h *WebhookHandler) ingestComment(ctx context.Context, accountID string, c instagram.CommentChange) error {
	return h.comments.IngestComment(ctx, commentpolicy.IngestCommentInput{
		AccountID:        accountID,
		CommentID:        c.ID,
		Text:             c.Text,
		MediaID:          c.Media.ID,
		MediaProductType: c.Media.MediaProductType,
		AuthorID:         c.From.ID,
		AuthorUsername:   c.From.Username,
		ParentID:         c.ParentID,
	})
}

func (h *WebhookHandler) ingestMessage(ctx context.Context, accountID string, m instagram.MessagingEvent) error {
	in := directpolicy.IngestMessageInput{
		AccountID:     accountID,
		MessageID:     m.Message.MID,
		Text:          m.Message.Text,
		ParticipantID: m.ParticipantID(),
		FromMe:        m.Message.IsEcho,
		Timestamp:     m.SentAt(),
	}

	if len(m.Message.Attachments) > 0 {
		in.AttachmentURL = m.Message.Attachments[0].Payload.URL
		in.AttachmentType = m.Message.Attachments[0].Type
	}

	return h.direct.IngestMessage(ctx, in)
}
