package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/insta-inbox/internal/domain/direct/entity"
	"github.com/vadim/insta-inbox/internal/domain/direct/policy"
	"github.com/vadim/insta-inbox/internal/httpx/response"
	"github.com/vadim/insta-inbox/internal/httpx/upstream/instagram"
)

// DirectPolicy defines the interface for direct message operations
type DirectPolicy interface {
	SendMessage(ctx context.Context, in policy.SendMessageInput) (*policy.SendMessageOutput, error)
	GetConversations(ctx context.Context, in policy.GetConversationsInput) (*policy.GetConversationsOutput, error)
	GetMessages(ctx context.Context, in policy.GetMessagesInput) (*policy.GetMessagesOutput, error)
}

// DirectHandler handles HTTP requests for direct messages
type DirectHandler struct {
	policy DirectPolicy
}

// NewDirectHandler creates a new direct message handler
func NewDirectHandler(p DirectPolicy) *DirectHandler {
	return &DirectHandler{policy: p}
}

// RegisterRoutes registers direct message routes
func (h *DirectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/direct", func(r chi.Router) {
		// Send text message through the delivery chain
		r.Post("/messages", h.SendMessage())

		// Get conversations list
		r.Get("/conversations", h.GetConversations())

		// Get messages in a thread
		r.Get("/conversations/{participantId}/messages", h.GetMessages())
	})
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	AccountID   string `json:"account_id"`
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
	CommentID   string `json:"comment_id,omitempty"`
}

// SendMessageResponse represents the response for sending a message
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	Channel   string `json:"channel"`
}

// SendMessage handles POST /direct/messages
func (h *DirectHandler) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		if req.AccountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}
		if req.RecipientID == "" {
			response.BadRequest(w, "recipient_id is required")
			return
		}
		if req.Message == "" {
			response.BadRequest(w, "message is required")
			return
		}

		result, err := h.policy.SendMessage(r.Context(), policy.SendMessageInput{
			AccountID:   req.AccountID,
			RecipientID: req.RecipientID,
			Message:     req.Message,
			CommentID:   req.CommentID,
		})
		if err != nil {
			handleDirectError(w, err)
			return
		}

		response.Created(w, SendMessageResponse{
			MessageID: result.MessageID,
			Channel:   result.Channel,
		})
	}
}

// GetConversationsResponse represents the response for getting conversations
type GetConversationsResponse struct {
	Conversations []entity.Conversation `json:"conversations"`
	Total         int64                 `json:"total"`
	HasMore       bool                  `json:"has_more"`
}

// GetConversations handles GET /direct/conversations
func (h *DirectHandler) GetConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		limit, offset := parsePagination(r)

		result, err := h.policy.GetConversations(r.Context(), policy.GetConversationsInput{
			AccountID: accountID,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			handleDirectError(w, err)
			return
		}

		response.OK(w, GetConversationsResponse{
			Conversations: result.Conversations,
			Total:         result.Total,
			HasMore:       result.HasMore,
		})
	}
}

// GetMessagesResponse represents the response for getting messages
type GetMessagesResponse struct {
	Messages []entity.Message `json:"messages"`
	Total    int64            `json:"total"`
	HasMore  bool             `json:"has_more"`
}

// GetMessages handles GET /direct/conversations/{participantId}/messages
func (h *DirectHandler) GetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participantID := chi.URLParam(r, "participantId")
		accountID := r.URL.Query().Get("account_id")

		if accountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		limit, offset := parsePagination(r)

		result, err := h.policy.GetMessages(r.Context(), policy.GetMessagesInput{
			AccountID:     accountID,
			ParticipantID: participantID,
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			handleDirectError(w, err)
			return
		}

		response.OK(w, GetMessagesResponse{
			Messages: result.Messages,
			Total:    result.Total,
			HasMore:  result.HasMore,
		})
	}
}

// parsePagination extracts limit/offset query parameters with defaults
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 100 {
				limit = 100
			}
		}
	}

	offset = 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

func handleDirectError(w http.ResponseWriter, err error) {
	var deliveryErr *instagram.DeliveryError
	if errors.As(err, &deliveryErr) {
		response.ErrorWithDetails(w, http.StatusBadGateway, "message delivery failed on all channels", deliveryErr.Attempts)
		return
	}

	var apiErr *instagram.APIError
	if errors.As(err, &apiErr) {
		response.BadGateway(w, apiErr.Message)
		return
	}

	switch {
	case errors.Is(err, entity.ErrConversationNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrMessageNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrEmptyMessage):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrMessageTooLong):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrInvalidRecipient):
		response.BadRequest(w, err.Error())
	case errors.Is(err, instagram.ErrEmptyMessage):
		response.BadRequest(w, err.Error())
	case errors.Is(err, instagram.ErrMessageTooLong):
		response.BadRequest(w, err.Error())
	case errors.Is(err, instagram.ErrEmptyRecipient):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}
