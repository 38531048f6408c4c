package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hszk-dev/vidshelf/internal/api/middleware"
	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/usecase"
)

// Request/Response types

type SaveOverlayRequest struct {
	OverlayText string `json:"overlay_text"`
	Title       string `json:"title"`
}

type SaveOverlayResponse struct {
	OK          bool   `json:"ok"`
	OverlayText string `json:"overlay_text"`
}

type BulkDeleteRequest struct {
	IDs json.RawMessage `json:"ids"`
}

type BulkDeleteResponse struct {
	OK      bool    `json:"ok"`
	Deleted []int64 `json:"deleted"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type VideoResponse struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	Title        string `json:"title"`
	OverlayText  string `json:"overlay_text"`
	Thumbnail    string `json:"thumbnail"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	CreatedAt    string `json:"created_at"`
}

type ListVideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

// VideoHandler handles the JSON API and blob streaming endpoints.
type VideoHandler struct {
	svc usecase.CatalogService
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(svc usecase.CatalogService) *VideoHandler {
	return &VideoHandler{svc: svc}
}

// List handles GET /api/videos
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ListVideosResponse{Videos: make([]VideoResponse, 0, len(videos))}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, toVideoResponse(v))
	}
	JSON(w, http.StatusOK, resp)
}

// Get handles GET /api/video/{id}
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(r)
	if !ok {
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
		return
	}

	video, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, toVideoResponse(video))
}

// SaveOverlay handles POST /api/video/{id}/save_overlay
func (h *VideoHandler) SaveOverlay(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(r)
	if !ok {
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
		return
	}

	// A null body decodes without error but leaves req nil.
	var req *SaveOverlayRequest
	if err := decodeJSON(w, r, &req); err != nil || req == nil {
		Error(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	video, err := h.svc.UpdateAnnotation(r.Context(), id, req.Title, req.OverlayText)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, SaveOverlayResponse{OK: true, OverlayText: video.OverlayText})
}

// Delete handles POST /api/video/{id}/delete
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(r)
	if !ok {
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, OKResponse{OK: true})
}

// BulkDelete handles POST /api/videos/bulk_delete
// A missing body or a missing ids field deletes nothing.
func (h *VideoHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		Error(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	ids, err := parseIDs(req.IDs)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "ids must be a list of integers")
		return
	}

	deleted, err := h.svc.BulkDelete(r.Context(), ids)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, BulkDeleteResponse{OK: true, Deleted: deleted})
}

// ServeVideo handles GET /uploads/{filename}
func (h *VideoHandler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.OpenVideo(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.handleStreamError(w, r, err)
		return
	}
	defer obj.Close()

	serveObject(w, r, obj)
}

// ServeThumbnail handles GET /thumbnails/{filename}
// Unknown thumbnails are answered with the placeholder image.
func (h *VideoHandler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.OpenThumbnail(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.handleStreamError(w, r, err)
		return
	}
	defer obj.Close()

	serveObject(w, r, obj)
}

// ServePlaceholder handles GET /placeholder.jpg
func (h *VideoHandler) ServePlaceholder(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.OpenPlaceholder(r.Context())
	if err != nil {
		h.handleStreamError(w, r, err)
		return
	}
	defer obj.Close()

	serveObject(w, r, obj)
}

// Download handles GET /video/{id}/download
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	video, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleStreamError(w, r, err)
		return
	}

	obj, err := h.svc.OpenVideo(r.Context(), video.Filename)
	if err != nil {
		h.handleStreamError(w, r, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Disposition", attachment(video.Filename))
	serveObject(w, r, obj)
}

func (h *VideoHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrVideoNotFound):
		Error(w, http.StatusNotFound, "video_not_found", "Video not found")
	case errors.Is(err, repository.ErrObjectNotFound):
		Error(w, http.StatusNotFound, "object_not_found", "File not found")
	case errors.Is(err, model.ErrTitleTooLong):
		Error(w, http.StatusBadRequest, "invalid_title", "Title exceeds maximum length")
	case errors.Is(err, repository.ErrDuplicateVideo):
		Error(w, http.StatusConflict, "video_exists", "Video already exists")
	default:
		slog.Error("request failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// handleStreamError answers blob endpoints, which browsers load directly,
// with plain-text errors.
func (h *VideoHandler) handleStreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrObjectNotFound) || errors.Is(err, repository.ErrVideoNotFound) {
		http.NotFound(w, r)
		return
	}
	slog.Error("failed to open blob",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// serveObject streams obj with range and conditional request support.
func serveObject(w http.ResponseWriter, r *http.Request, obj *repository.Object) {
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	http.ServeContent(w, r, obj.Name, obj.LastModified, obj)
}

// videoID parses the {id} URL parameter. Anything that is not an integer
// is treated like an unknown video.
func videoID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseIDs decodes the ids field of a bulk delete. Absent or null means no ids.
func parseIDs(raw json.RawMessage) ([]int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func toVideoResponse(v *model.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID,
		Filename:     v.Filename,
		Title:        v.Title,
		OverlayText:  v.OverlayText,
		Thumbnail:    v.Thumbnail,
		VideoURL:     videoURL(v),
		ThumbnailURL: thumbnailURL(v),
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
	}
}
