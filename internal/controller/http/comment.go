package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/insta-inbox/internal/domain/comment/entity"
	"github.com/vadim/insta-inbox/internal/domain/comment/policy"
	"github.com/vadim/insta-inbox/internal/httpx/response"
	"github.com/vadim/insta-inbox/internal/httpx/upstream/instagram"
)

// CommentPolicy defines the interface for comment operations
type CommentPolicy interface {
	SendReply(ctx context.Context, in policy.SendReplyInput) (*policy.SendReplyOutput, error)
	GetComments(ctx context.Context, in policy.GetCommentsInput) (*policy.GetCommentsOutput, error)
}

// CommentHandler handles HTTP requests for comments
type CommentHandler struct {
	policy CommentPolicy
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(p CommentPolicy) *CommentHandler {
	return &CommentHandler{policy: p}
}

// RegisterRoutes registers comment routes
func (h *CommentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/comments", func(r chi.Router) {
		// Get comments list
		r.Get("/", h.GetComments())

		// Get comments for a media post
		r.Get("/media/{mediaId}", h.GetComments())

		// Post a public reply to a comment
		r.Post("/{commentId}/replies", h.SendReply())
	})
}

// SendReplyRequest represents the request body for replying to a comment
type SendReplyRequest struct {
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
}

// SendReplyResponse represents the response for replying to a comment
type SendReplyResponse struct {
	ReplyID string `json:"reply_id"`
}

// SendReply handles POST /comments/{commentId}/replies
func (h *CommentHandler) SendReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := chi.URLParam(r, "commentId")

		var req SendReplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		if req.AccountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}
		if req.Message == "" {
			response.BadRequest(w, "message is required")
			return
		}

		result, err := h.policy.SendReply(r.Context(), policy.SendReplyInput{
			AccountID: req.AccountID,
			CommentID: commentID,
			Message:   req.Message,
		})
		if err != nil {
			handleCommentError(w, err)
			return
		}

		response.Created(w, SendReplyResponse{ReplyID: result.ReplyID})
	}
}

// GetCommentsResponse represents the response for getting comments
type GetCommentsResponse struct {
	Comments []entity.Comment `json:"comments"`
	Total    int64            `json:"total"`
}

// GetComments handles GET /comments and GET /comments/media/{mediaId}
func (h *CommentHandler) GetComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID := chi.URLParam(r, "mediaId")
		accountID := r.URL.Query().Get("account_id")

		if accountID == "" && mediaID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		limit, offset := parsePagination(r)

		result, err := h.policy.GetComments(r.Context(), policy.GetCommentsInput{
			AccountID: accountID,
			MediaID:   mediaID,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			handleCommentError(w, err)
			return
		}

		response.OK(w, GetCommentsResponse{
			Comments: result.Comments,
			Total:    result.Total,
		})
	}
}

func handleCommentError(w http.ResponseWriter, err error) {
	var apiErr *instagram.APIError
	if errors.As(err, &apiErr) {
		response.BadGateway(w, apiErr.Message)
		return
	}

	switch {
	case errors.Is(err, entity.ErrCommentNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrEmptyReplyText):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrReplyTextTooLong):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}
