package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/share-links/internal/share"
	"go.uber.org/zap"
)

const (
	msgNotFound    = "link not found or expired"
	msgCreateRetry = "could not create link, try again"
	msgResolveFail = "could not resolve link, try again"
)

// ShareHandler exposes share link issuance and resolution over HTTP.
type ShareHandler struct {
	coordinator *share.Coordinator
	logger      *zap.Logger
}

// NewShareHandler creates a new share handler.
func NewShareHandler(coordinator *share.Coordinator, logger *zap.Logger) *ShareHandler {
	return &ShareHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

func (h *ShareHandler) CreateShare(ctx context.Context, req *CreateShareRequest) (*CreateShareResponse, error) {
	link, err := h.coordinator.Create(ctx, req.Body.URL)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrInvalidInput):
			return nil, huma.Error400BadRequest(err.Error())
		case errors.Is(err, share.ErrStoreExhausted):
			h.logger.Error("token space exhausted", zap.Error(err))

			return nil, huma.Error500InternalServerError(msgCreateRetry)
		default:
			h.logger.Error("failed to create share link", zap.Error(err))

			return nil, huma.Error503ServiceUnavailable(msgCreateRetry)
		}
	}

	shortURL := h.coordinator.ShortURL(link.Token)

	resp := &CreateShareResponse{}
	resp.Location = shortURL
	resp.Body.Token = string(link.Token)
	resp.Body.URL = shortURL
	resp.Body.ExpiresAt = link.ExpiresAt

	return resp, nil
}

func (h *ShareHandler) GetShare(ctx context.Context, req *GetShareRequest) (*GetShareResponse, error) {
	url, err := h.resolve(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	resp := &GetShareResponse{}
	resp.Body.URL = url

	return resp, nil
}

func (h *ShareHandler) Redirect(ctx context.Context, req *GetShareRequest) (*RedirectResponse, error) {
	url, err := h.resolve(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: url,
	}, nil
}

func (h *ShareHandler) resolve(ctx context.Context, token string) (string, error) {
	url, err := h.coordinator.Resolve(ctx, token)
	if err == nil {
		return url, nil
	}

	switch {
	case errors.Is(err, share.ErrNotFound):
		return "", huma.Error404NotFound(msgNotFound)
	case errors.Is(err, share.ErrInvalidInput):
		return "", huma.Error400BadRequest(err.Error())
	default:
		h.logger.Error("failed to resolve share link", zap.String("token", token), zap.Error(err))

		return "", huma.Error503ServiceUnavailable(msgResolveFail)
	}
}
