package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"pablos-ai/internal/domain/entity"
	"pablos-ai/internal/handler/http/respond"
	chatUC "pablos-ai/internal/usecase/chat"
)

const defaultHistoryLimit = 20

type ChatHandler struct{ Svc *chatUC.Service }

// ServeHTTP answers POST /v1/chat. A canned fallback answer is still a 200
// with "fallback": true; 503 means no answer at all.
func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	reply, err := h.Svc.Chat(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, chatResponse{Reply: reply.Text, Fallback: reply.Fallback, Cached: reply.Cached})
}

type ImageHandler struct{ Svc *chatUC.Service }

// ServeHTTP answers POST /v1/images with the raw image bytes.
func (h ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	img, err := h.Svc.Imagine(r.Context(), req.UserID, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}

	// 画像はバイナリのまま返す
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

type HistoryHandler struct{ Svc *chatUC.Service }

// ServeHTTP answers GET /v1/history?user_id=N[&limit=M], 1 <= M <= Svc.MaxHistory().
func (h HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	// 保持件数を超える limit は受け付けない
	maxLimit := h.Svc.MaxHistory()
	limit := min(defaultHistoryLimit, maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 || limit > maxLimit {
			respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxLimit))
			return
		}
	}

	msgs, err := h.Svc.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}
	respond.JSON(w, http.StatusOK, out)
}

type ClearHistoryHandler struct{ Svc *chatUC.Service }

// ServeHTTP answers DELETE /v1/history?user_id=N with 204.
func (h ClearHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.ClearHistory(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("user_id must be a positive integer")
	}
	return id, nil
}

// writeError maps use case errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var throttled *chatUC.ThrottledError
	switch {
	case errors.Is(err, chatUC.ErrInvalidUser),
		errors.Is(err, chatUC.ErrEmptyMessage),
		errors.Is(err, entity.ErrValidationFailed):
		respond.SafeError(w, http.StatusBadRequest, err)
	case errors.As(err, &throttled):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(throttled.Remaining.Seconds()))))
		respond.SafeError(w, http.StatusTooManyRequests, err)
	case errors.Is(err, context.DeadlineExceeded):
		respond.SafeError(w, http.StatusGatewayTimeout,
			respond.NewAppError(http.StatusGatewayTimeout, "request timed out", err))
	case errors.Is(err, chatUC.ErrNoAnswer):
		respond.SafeError(w, http.StatusServiceUnavailable,
			respond.NewAppError(http.StatusServiceUnavailable, "no answer available, try again later", err))
	case errors.Is(err, chatUC.ErrImagePrompt), errors.Is(err, chatUC.ErrImageFailed):
		respond.SafeError(w, http.StatusServiceUnavailable,
			respond.NewAppError(http.StatusServiceUnavailable, "could not generate image", err))
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
