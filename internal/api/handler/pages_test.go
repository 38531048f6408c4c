package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/usecase"
)

const testSecret = "test-secret"

func newPageRouter(t *testing.T, svc usecase.CatalogService, maxUploadBytes int64) *chi.Mux {
	t.Helper()
	h, err := NewPageHandler(svc, NewFlashStore(testSecret), maxUploadBytes)
	if err != nil {
		t.Fatalf("NewPageHandler() error = %v", err)
	}
	r := chi.NewRouter()
	r.Get("/", h.Gallery)
	r.Post("/upload", h.Upload)
	r.Get("/video/{id}", h.Detail)
	return r
}

type formFile struct {
	field, name, content string
}

func multipartBody(t *testing.T, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		var (
			w   io.Writer
			err error
		)
		if f.name == "-" {
			w, err = mw.CreateFormField(f.field)
		} else {
			w, err = mw.CreateFormFile(f.field, f.name)
		}
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, f.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// readFlash replays the response cookies into a new request and pops the flash.
func readFlash(t *testing.T, rec *httptest.ResponseRecorder) (Flash, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return NewFlashStore(testSecret).Pop(httptest.NewRecorder(), req)
}

// uploadingService accepts .mp4 files and records what it read.
func uploadingService(received map[string]string) *mockCatalogService {
	var nextID int64
	return &mockCatalogService{
		uploadFn: func(ctx context.Context, input usecase.UploadInput) (*model.Video, error) {
			data, err := io.ReadAll(input.Content)
			if err != nil {
				return nil, fmt.Errorf("read: %w", err)
			}
			if !strings.HasSuffix(input.Filename, ".mp4") {
				return nil, usecase.ErrUnsupportedFile
			}
			if input.Filename == "broken.mp4" {
				return nil, errors.New("disk full")
			}
			received[input.Filename] = string(data)
			nextID++
			return &model.Video{ID: nextID, Filename: input.Filename}, nil
		},
	}
}

func TestPageHandler_Upload(t *testing.T) {
	tests := []struct {
		name      string
		files     []formFile
		wantFlash Flash
		wantFiles map[string]string
	}{
		{
			name: "allowed files are created",
			files: []formFile{
				{"files", "a.mp4", "aaa"},
				{"files", "notes.txt", "txt"},
				{"files", "b.mp4", "bbb"},
			},
			wantFlash: Flash{Category: FlashSuccess, Message: "Uploaded 2 file(s)."},
			wantFiles: map[string]string{"a.mp4": "aaa", "b.mp4": "bbb"},
		},
		{
			name:      "no allowed files",
			files:     []formFile{{"files", "notes.txt", "txt"}},
			wantFlash: Flash{Category: FlashWarning, Message: "No allowed files uploaded."},
			wantFiles: map[string]string{},
		},
		{
			name:      "empty file input",
			files:     []formFile{{"files", "", ""}},
			wantFlash: Flash{Category: FlashWarning, Message: "No allowed files uploaded."},
			wantFiles: map[string]string{},
		},
		{
			name:      "missing files field",
			files:     []formFile{{"other", "a.mp4", "aaa"}, {"note", "-", "hi"}},
			wantFlash: Flash{Category: FlashWarning, Message: "No files part"},
			wantFiles: map[string]string{},
		},
		{
			name:      "failed file is not counted",
			files:     []formFile{{"files", "broken.mp4", "x"}, {"files", "ok.mp4", "y"}},
			wantFlash: Flash{Category: FlashSuccess, Message: "Uploaded 1 file(s)."},
			wantFiles: map[string]string{"ok.mp4": "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := map[string]string{}
			r := newPageRouter(t, uploadingService(received), 0)

			body, contentType := multipartBody(t, tt.files)
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected status 303, got %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != "/" {
				t.Errorf("Location = %q, want /", loc)
			}

			got, ok := readFlash(t, rec)
			if !ok || got != tt.wantFlash {
				t.Errorf("flash = %+v (ok=%v), want %+v", got, ok, tt.wantFlash)
			}

			if len(received) != len(tt.wantFiles) {
				t.Fatalf("received %v, want %v", received, tt.wantFiles)
			}
			for name, content := range tt.wantFiles {
				if received[name] != content {
					t.Errorf("%s content = %q, want %q", name, received[name], content)
				}
			}
		})
	}
}

func TestPageHandler_Upload_NotMultipart(t *testing.T) {
	r := newPageRouter(t, &mockCatalogService{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}
	if got, _ := readFlash(t, rec); got.Message != "No files part" {
		t.Errorf("flash = %+v", got)
	}
}

func TestPageHandler_Upload_JSON(t *testing.T) {
	received := map[string]string{}
	r := newPageRouter(t, uploadingService(received), 0)

	body, contentType := multipartBody(t, []formFile{
		{"files", "a.mp4", "aaa"},
		{"files", "notes.txt", "txt"},
		{"files", "broken.mp4", "x"},
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.OK {
		t.Error("ok = true with a failed file")
	}
	if len(resp.Created) != 1 || resp.Created[0] != (UploadedFile{ID: 1, Filename: "a.mp4"}) {
		t.Errorf("created = %+v", resp.Created)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "notes.txt" {
		t.Errorf("skipped = %v", resp.Skipped)
	}
	if len(resp.Failed) != 1 || resp.Failed[0] != "broken.mp4" {
		t.Errorf("failed = %v", resp.Failed)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("JSON upload must not set a flash cookie")
	}
}

func TestPageHandler_Upload_JSONMissingField(t *testing.T) {
	r := newPageRouter(t, &mockCatalogService{}, 0)

	body, contentType := multipartBody(t, []formFile{{"other", "a.mp4", "aaa"}})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestPageHandler_Upload_TooLarge(t *testing.T) {
	received := map[string]string{}
	r := newPageRouter(t, uploadingService(received), 1024)

	body, contentType := multipartBody(t, []formFile{{"files", "big.mp4", strings.Repeat("x", 10<<10)}})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(received) != 0 {
		t.Errorf("received %v, want nothing", received)
	}
}

func TestPageHandler_Gallery(t *testing.T) {
	noThumb := sampleVideo(1)
	noThumb.Title = `<script>alert(1)</script>`
	noThumb.Thumbnail = model.NoThumbnail

	mock := &mockCatalogService{
		listFn: func(ctx context.Context) ([]*model.Video, error) {
			return []*model.Video{sampleVideo(2), noThumb}, nil
		},
	}
	r := newPageRouter(t, mock, 0)

	t.Run("renders entries newest first", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		body := rec.Body.String()

		first := strings.Index(body, `data-id="2"`)
		second := strings.Index(body, `data-id="1"`)
		if first < 0 || second < 0 || first > second {
			t.Errorf("cards out of order or missing")
		}
		if !strings.Contains(body, `src="/thumbnails/clip.jpg"`) {
			t.Error("thumbnail URL missing")
		}
		if !strings.Contains(body, `src="/placeholder.jpg"`) {
			t.Error("placeholder URL missing for entry without thumbnail")
		}
		if strings.Contains(body, "<script>alert(1)</script>") {
			t.Error("title is not escaped")
		}
	})

	t.Run("shows and clears flash", func(t *testing.T) {
		setRec := httptest.NewRecorder()
		NewFlashStore(testSecret).Set(setRec, Flash{Category: FlashSuccess, Message: "Uploaded 3 file(s)."})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range setRec.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if !strings.Contains(rec.Body.String(), "Uploaded 3 file(s).") {
			t.Error("flash message not rendered")
		}

		cleared := false
		for _, c := range rec.Result().Cookies() {
			if c.Name == flashCookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("flash cookie not cleared")
		}
	})

	t.Run("list error", func(t *testing.T) {
		failing := &mockCatalogService{
			listFn: func(ctx context.Context) ([]*model.Video, error) {
				return nil, errors.New("database is locked")
			},
		}
		rec := httptest.NewRecorder()
		newPageRouter(t, failing, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}

func TestPageHandler_Detail(t *testing.T) {
	mock := &mockCatalogService{
		getFn: func(ctx context.Context, id int64) (*model.Video, error) {
			if id == 1 {
				return sampleVideo(1), nil
			}
			return nil, repository.ErrVideoNotFound
		},
	}
	r := newPageRouter(t, mock, 0)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/video/1", http.StatusOK},
		{"/video/2", http.StatusNotFound},
		{"/video/abc", http.StatusNotFound},
		{"/video/-", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := rec.Body.String()
			for _, want := range []string{
				`src="/uploads/clip.mp4"`,
				`href="/video/1/download"`,
				`const VIDEO_ID =`,
				`const INITIAL_OVERLAY = "hello"`,
			} {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}
