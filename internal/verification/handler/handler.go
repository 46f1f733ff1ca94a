package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memberverify/internal/member/models"
	"memberverify/internal/verification/service"
	dErrors "memberverify/pkg/domain-errors"
	"memberverify/pkg/platform/httputil"
	"memberverify/pkg/requestcontext"
)

// multipartOverhead leaves room for the token field and part headers.
const multipartOverhead = 1 << 20

// Service is the verification surface exposed to applicants.
type Service interface {
	SelectMethod(ctx context.Context, tokenString, method string) (*models.Member, error)
	UploadBadge(ctx context.Context, tokenString string, up *service.Upload) (*models.Member, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
	limit  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRateLimit guards both endpoints with the given middleware.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.limit = mw
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Post("/verify/method", h.handleSelectMethod)
		r.Post("/verify/badge", h.handleUploadBadge)
	})
}

type selectMethodRequest struct {
	Token  string `json:"token"`
	Method string `json:"method"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) handleSelectMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[selectMethodRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Token == "" || req.Method == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token and method are required"))
		return
	}

	if _, err := h.svc.SelectMethod(ctx, req.Token, req.Method); err != nil {
		h.writeFailure(ctx, w, err, "unable to record verification method")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleUploadBadge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxBadgeSize+multipartOverhead)
	if err := r.ParseMultipartForm(service.MaxBadgeSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file exceeds 5MB limit"))
			return
		}
		h.logger.WarnContext(ctx, "invalid badge upload form",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var up *service.Upload
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid file part"))
		return
	default:
		defer file.Close()
		up = &service.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	}

	if _, err := h.svc.UploadBadge(ctx, r.FormValue("token"), up); err != nil {
		h.writeFailure(ctx, w, err, "unable to store badge")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// writeFailure hides member existence from applicants.
func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, err error, message string) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		h.logger.WarnContext(ctx, "verification request for unknown member",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, message))
	case dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, message,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
	default:
		httputil.WriteError(w, err)
	}
}
