package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/service"
)

// Handler processes one decoded request.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: svc, logger: logger}
}

// Handle runs req and returns the result payload. Errors wrapping
// errMalformed are permanent; everything else may succeed on redelivery.
func (h *Handler) Handle(ctx context.Context, req *Request) (any, error) {
	switch req.Kind {
	case KindStandardize:
		return h.standardize(ctx, req)
	case KindMatch:
		return h.match(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", errMalformed, req.Kind)
	}
}

func (h *Handler) standardize(ctx context.Context, req *Request) (any, error) {
	out, err := h.service.Standardize(ctx, req.Site, req.Phrases)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSite) {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return nil, err
	}

	if err := h.service.SaveStandardization(ctx, req.Owner, req.Site, out); err != nil {
		return nil, fmt.Errorf("save skill set: %w", err)
	}
	return out, nil
}

func (h *Handler) match(ctx context.Context, req *Request) (any, error) {
	result, err := h.service.Match(ctx, req.Requirements, req.Candidates)
	if err != nil {
		return nil, err
	}

	if err := h.service.SaveMatch(ctx, req.JobOwner, req.CandidateOwner, result); err != nil {
		return nil, fmt.Errorf("save match: %w", err)
	}
	return result, nil
}
