package handler

import (
	"bytes"
	"context"
	"time"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/usecase"
)

// Mock CatalogService

type mockCatalogService struct {
	uploadFn           func(ctx context.Context, input usecase.UploadInput) (*model.Video, error)
	listFn             func(ctx context.Context) ([]*model.Video, error)
	getFn              func(ctx context.Context, id int64) (*model.Video, error)
	updateAnnotationFn func(ctx context.Context, id int64, title, overlayText string) (*model.Video, error)
	deleteFn           func(ctx context.Context, id int64) error
	bulkDeleteFn       func(ctx context.Context, ids []int64) ([]int64, error)
	openVideoFn        func(ctx context.Context, filename string) (*repository.Object, error)
	openThumbnailFn    func(ctx context.Context, filename string) (*repository.Object, error)
}

var _ usecase.CatalogService = (*mockCatalogService)(nil)

func (m *mockCatalogService) Upload(ctx context.Context, input usecase.UploadInput) (*model.Video, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, input)
	}
	return nil, nil
}

func (m *mockCatalogService) List(ctx context.Context) ([]*model.Video, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Video{}, nil
}

func (m *mockCatalogService) Get(ctx context.Context, id int64) (*model.Video, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockCatalogService) UpdateAnnotation(ctx context.Context, id int64, title, overlayText string) (*model.Video, error) {
	if m.updateAnnotationFn != nil {
		return m.updateAnnotationFn(ctx, id, title, overlayText)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockCatalogService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCatalogService) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	if m.bulkDeleteFn != nil {
		return m.bulkDeleteFn(ctx, ids)
	}
	return []int64{}, nil
}

func (m *mockCatalogService) OpenVideo(ctx context.Context, filename string) (*repository.Object, error) {
	if m.openVideoFn != nil {
		return m.openVideoFn(ctx, filename)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockCatalogService) OpenThumbnail(ctx context.Context, filename string) (*repository.Object, error) {
	if m.openThumbnailFn != nil {
		return m.openThumbnailFn(ctx, filename)
	}
	return m.OpenPlaceholder(ctx)
}

func (m *mockCatalogService) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return newObject("placeholder.jpg", "image/jpeg", []byte("placeholder")), nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

func newObject(name, contentType string, data []byte) *repository.Object {
	return &repository.Object{
		ReadSeekCloser: nopSeekCloser{bytes.NewReader(data)},
		Name:           name,
		Size:           int64(len(data)),
		ContentType:    contentType,
		LastModified:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func sampleVideo(id int64) *model.Video {
	return &model.Video{
		ID:          id,
		Filename:    "clip.mp4",
		Title:       "clip",
		OverlayText: "hello",
		Thumbnail:   "clip.jpg",
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}
