package handlers

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
)

// Multipart bodies are buffered in memory up to this size, the rest spills to disk.
const multipartMemory = 32 << 20

type VideoHandler struct {
	videoService   *service.VideoService
	maxUploadBytes int64
}

func NewVideoHandler(videoService *service.VideoService, maxUploadBytes int64) *VideoHandler {
	return &VideoHandler{videoService: videoService, maxUploadBytes: maxUploadBytes}
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}

	videos, err := h.videoService.List(r.Context(), scope)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, videos)
}

// Upload accepts a multipart form with the video in the "file" field.
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respond.Error(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, r, fmt.Errorf("%w: file field is required", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		respond.Error(w, r, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, h.maxUploadBytes))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}

	video, err := h.videoService.Upload(r.Context(), scope, service.UploadInput{
		FileName: header.Filename,
		Size:     header.Size,
		MimeType: mimeType,
		Body:     file,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, r, video)
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	video, err := h.videoService.Get(r.Context(), scope, id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, video)
}

func (h *VideoHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.videoService.Deactivate(r.Context(), scope, id); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w, r)
}

func (h *VideoHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	url, err := h.videoService.DownloadURL(r.Context(), scope, id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, map[string]string{"url": url})
}
