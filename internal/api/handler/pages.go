package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/hszk-dev/vidshelf/internal/api/middleware"
	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const uploadField = "files"

// Flash texts shown on the gallery after an upload.
const (
	flashNoFilesPart    = "No files part"
	flashNoAllowedFiles = "No allowed files uploaded."
	flashUploadFailed   = "Upload failed."
)

// StaticFiles serves the gallery and detail page scripts.
func StaticFiles() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

type videoView struct {
	ID           int64
	Title        string
	Filename     string
	OverlayText  string
	VideoURL     string
	ThumbnailURL string
	DownloadURL  string
	CreatedAt    string
}

type galleryPage struct {
	Flash  *Flash
	Videos []videoView
}

type detailPage struct {
	Video videoView
}

type UploadedFile struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

type UploadResponse struct {
	OK      bool           `json:"ok"`
	Created []UploadedFile `json:"created"`
	Skipped []string       `json:"skipped"`
	Failed  []string       `json:"failed"`
}

// PageHandler serves the HTML gallery, the detail page and form uploads.
type PageHandler struct {
	svc            usecase.CatalogService
	flash          *FlashStore
	pages          *template.Template
	maxUploadBytes int64
}

// NewPageHandler parses the embedded templates and creates a PageHandler.
// maxUploadBytes <= 0 disables the request size limit.
func NewPageHandler(svc usecase.CatalogService, flash *FlashStore, maxUploadBytes int64) (*PageHandler, error) {
	pages, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &PageHandler{
		svc:            svc,
		flash:          flash,
		pages:          pages,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// Gallery handles GET /
func (h *PageHandler) Gallery(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	page := galleryPage{Videos: make([]videoView, 0, len(videos))}
	for _, v := range videos {
		page.Videos = append(page.Videos, toVideoView(v))
	}
	if f, ok := h.flash.Pop(w, r); ok {
		page.Flash = &f
	}

	h.render(w, r, "index.html", page)
}

// Detail handles GET /video/{id}
func (h *PageHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := videoID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	video, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			http.NotFound(w, r)
			return
		}
		h.internalError(w, r, err)
		return
	}

	h.render(w, r, "detail.html", detailPage{Video: toVideoView(video)})
}

// Upload handles POST /upload
//
// Parts of the "files" field are streamed one by one into the catalog.
// Browsers get a flash message and a redirect to the gallery; clients
// sending Accept: application/json get the per-file outcome.
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	resp, sawField, err := h.receiveFiles(r)
	if err != nil {
		slog.Warn("upload aborted",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.Int("created", len(resp.Created)),
			slog.String("error", err.Error()),
		)
	}

	if wantsJSON(r) {
		h.uploadJSON(w, resp, sawField, err)
		return
	}

	switch {
	case len(resp.Created) > 0:
		h.flash.Set(w, Flash{Category: FlashSuccess, Message: fmt.Sprintf("Uploaded %d file(s).", len(resp.Created))})
	case err != nil && sawField:
		h.flash.Set(w, Flash{Category: FlashWarning, Message: flashUploadFailed})
	case !sawField:
		h.flash.Set(w, Flash{Category: FlashWarning, Message: flashNoFilesPart})
	default:
		h.flash.Set(w, Flash{Category: FlashWarning, Message: flashNoAllowedFiles})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) uploadJSON(w http.ResponseWriter, resp UploadResponse, sawField bool, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		Error(w, http.StatusRequestEntityTooLarge, "request_too_large", "Upload exceeds the size limit")
	case err != nil:
		Error(w, http.StatusBadRequest, "invalid_request", "Malformed multipart body")
	case !sawField:
		Error(w, http.StatusBadRequest, "invalid_request", flashNoFilesPart)
	default:
		resp.OK = len(resp.Failed) == 0
		JSON(w, http.StatusOK, resp)
	}
}

// receiveFiles walks the multipart body. It reports whether the files field
// was present at all; a read error stops the walk but keeps what was created.
func (h *PageHandler) receiveFiles(r *http.Request) (UploadResponse, bool, error) {
	resp := UploadResponse{
		Created: []UploadedFile{},
		Skipped: []string{},
		Failed:  []string{},
	}

	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return resp, false, nil
		}
		return resp, false, err
	}

	sawField := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return resp, sawField, nil
		}
		if err != nil {
			return resp, sawField, err
		}

		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		sawField = true

		name := part.FileName()
		if name == "" {
			// empty file input
			_ = part.Close()
			continue
		}

		video, err := h.svc.Upload(r.Context(), usecase.UploadInput{Filename: name, Content: part})
		_ = part.Close()

		switch {
		case err == nil:
			resp.Created = append(resp.Created, UploadedFile{ID: video.ID, Filename: video.Filename})
		case errors.Is(err, usecase.ErrUnsupportedFile):
			resp.Skipped = append(resp.Skipped, name)
		default:
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return resp, sawField, err
			}
			slog.Error("failed to upload file",
				slog.String("request_id", middleware.GetRequestID(r.Context())),
				slog.String("filename", name),
				slog.String("error", err.Error()),
			)
			resp.Failed = append(resp.Failed, name)
		}
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.internalError(w, r, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("page request failed",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func toVideoView(v *model.Video) videoView {
	return videoView{
		ID:           v.ID,
		Title:        v.Title,
		Filename:     v.Filename,
		OverlayText:  v.OverlayText,
		VideoURL:     videoURL(v),
		ThumbnailURL: thumbnailURL(v),
		DownloadURL:  fmt.Sprintf("/video/%d/download", v.ID),
		CreatedAt:    v.CreatedAt.UTC().Format(time.DateTime),
	}
}

func videoURL(v *model.Video) string {
	return "/uploads/" + url.PathEscape(v.Filename)
}

// thumbnailURL points entries without a thumbnail straight at the placeholder.
func thumbnailURL(v *model.Video) string {
	if !v.HasThumbnail() {
		return "/placeholder.jpg"
	}
	return "/thumbnails/" + url.PathEscape(v.Thumbnail)
}

func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
