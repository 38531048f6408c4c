package usecase

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/vidshelf/internal/domain/model"
	"github.com/hszk-dev/vidshelf/internal/domain/repository"
	"github.com/hszk-dev/vidshelf/internal/infrastructure/cache"
)

// mockVideoRepository is an in-memory VideoRepository whose methods can be overridden.
type mockVideoRepository struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]*model.Video

	createFn  func(ctx context.Context, video *model.Video) error
	getByIDFn func(ctx context.Context, id int64) (*model.Video, error)
	listFn    func(ctx context.Context) ([]*model.Video, error)
	deleteFn  func(ctx context.Context, id int64, release func(v *model.Video)) error
}

func newMockVideoRepository() *mockVideoRepository {
	return &mockVideoRepository{data: make(map[int64]*model.Video)}
}

func (m *mockVideoRepository) seed(filename, thumbnail string) *model.Video {
	v, _ := model.NewVideo(filename, thumbnail)
	_ = m.Create(context.Background(), v)
	return v
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.data {
		if v.Filename == video.Filename {
			return repository.ErrDuplicateVideo
		}
	}
	m.nextID++
	video.ID = m.nextID
	stored := *video
	m.data[video.ID] = &stored
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id int64) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[id]
	if !ok {
		return nil, repository.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVideoRepository) List(ctx context.Context) ([]*model.Video, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Video, 0, len(m.data))
	for _, v := range m.data {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockVideoRepository) Update(ctx context.Context, id int64, mutate func(v *model.Video) error) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[id]
	if !ok {
		return nil, repository.ErrVideoNotFound
	}
	cp := *v
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	m.data[id] = &cp
	out := cp
	return &out, nil
}

func (m *mockVideoRepository) Delete(ctx context.Context, id int64, release func(v *model.Video)) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, release)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[id]
	if !ok {
		return repository.ErrVideoNotFound
	}
	release(v)
	delete(m.data, id)
	return nil
}

func (m *mockVideoRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// mockBlobStore is an in-memory BlobStore whose methods can be overridden.
type mockBlobStore struct {
	mu         sync.Mutex
	videos     map[string][]byte
	thumbnails map[string][]byte

	saveVideoFn       func(ctx context.Context, r io.Reader, suggestedName string) (string, error)
	saveThumbnailFn   func(ctx context.Context, videoName string, r io.Reader) (string, error)
	deleteVideoFn     func(ctx context.Context, name string) error
	deleteThumbnailFn func(ctx context.Context, name string) error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{
		videos:     make(map[string][]byte),
		thumbnails: make(map[string][]byte),
	}
}

func (m *mockBlobStore) SaveVideo(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	if m.saveVideoFn != nil {
		return m.saveVideoFn(ctx, r, suggestedName)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[suggestedName] = data
	return suggestedName, nil
}

func (m *mockBlobStore) SaveThumbnail(ctx context.Context, videoName string, r io.Reader) (string, error) {
	if m.saveThumbnailFn != nil {
		return m.saveThumbnailFn(ctx, videoName, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(videoName, filepath.Ext(videoName)) + ".jpg"
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thumbnails[name] = data
	return name, nil
}

func (m *mockBlobStore) OpenVideo(ctx context.Context, name string) (*repository.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.videos[name]
	if !ok {
		return nil, repository.ErrObjectNotFound
	}
	return newObject(name, "video/mp4", data), nil
}

func (m *mockBlobStore) ResolveThumbnail(ctx context.Context, name string) (*repository.Object, error) {
	m.mu.Lock()
	data, ok := m.thumbnails[name]
	m.mu.Unlock()
	if !ok {
		return m.OpenPlaceholder(ctx)
	}
	return newObject(name, "image/jpeg", data), nil
}

func (m *mockBlobStore) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return newObject("placeholder.jpg", "image/jpeg", []byte("placeholder")), nil
}

func (m *mockBlobStore) DeleteVideo(ctx context.Context, name string) error {
	if m.deleteVideoFn != nil {
		return m.deleteVideoFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.videos, name)
	return nil
}

func (m *mockBlobStore) DeleteThumbnail(ctx context.Context, name string) error {
	if m.deleteThumbnailFn != nil {
		return m.deleteThumbnailFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.thumbnails, name)
	return nil
}

func (m *mockBlobStore) hasVideo(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.videos[name]
	return ok
}

func (m *mockBlobStore) hasThumbnail(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.thumbnails[name]
	return ok
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
		LastModified:   time.Now(),
	}
}

// mockGenerator provides a configurable mock for thumbnail.Generator.
// By default it writes a fake JPEG and reports success.
type mockGenerator struct {
	generateFn func(ctx context.Context, videoPath, outputPath string) bool
	calls      atomic.Int32
}

func (m *mockGenerator) Generate(ctx context.Context, videoPath, outputPath string) bool {
	m.calls.Add(1)
	if m.generateFn != nil {
		return m.generateFn(ctx, videoPath, outputPath)
	}
	return writeFakeJPEG(outputPath)
}

// mockCleanupQueue provides a configurable mock for CleanupQueue.
type mockCleanupQueue struct {
	mu        sync.Mutex
	published []repository.CleanupTask

	publishFn func(ctx context.Context, task repository.CleanupTask) error
}

func (m *mockCleanupQueue) PublishCleanupTask(ctx context.Context, task repository.CleanupTask) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, task)
	return nil
}

func (m *mockCleanupQueue) ConsumeCleanupTasks(ctx context.Context, handler func(task repository.CleanupTask) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockCleanupQueue) Close() error {
	return nil
}

// mockVideoCache is a mock implementation of VideoCache for testing.
type mockVideoCache struct {
	mu          sync.RWMutex
	data        map[int64]*model.Video
	list        []*model.Video
	generation  int64
	invalidated [][]int64

	getFn        func(ctx context.Context, videoID int64) (*model.Video, error)
	setFn        func(ctx context.Context, video *model.Video, ttl time.Duration) error
	invalidateFn func(ctx context.Context, videoIDs ...int64) error
}

func (m *mockVideoCache) Generation(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation, nil
}

func newMockVideoCache() *mockVideoCache {
	return &mockVideoCache{
		data: make(map[int64]*model.Video),
	}
}

func (m *mockVideoCache) Get(ctx context.Context, videoID int64) (*model.Video, error) {
	if m.getFn != nil {
		return m.getFn(ctx, videoID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[videoID], nil
}

func (m *mockVideoCache) Set(ctx context.Context, video *model.Video, generation int64, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, video, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return cache.ErrStale
	}
	m.data[video.ID] = video
	return nil
}

func (m *mockVideoCache) GetList(ctx context.Context) ([]*model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list, nil
}

func (m *mockVideoCache) SetList(ctx context.Context, videos []*model.Video, generation int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return cache.ErrStale
	}
	m.list = videos
	return nil
}

func (m *mockVideoCache) Invalidate(ctx context.Context, videoIDs ...int64) error {
	m.mu.Lock()
	m.invalidated = append(m.invalidated, videoIDs)
	m.mu.Unlock()
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, videoIDs...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	for _, id := range videoIDs {
		delete(m.data, id)
	}
	m.list = nil
	return nil
}

// mockCatalogService is a mock implementation of CatalogService for testing.
type mockCatalogService struct {
	uploadFn           func(ctx context.Context, input UploadInput) (*model.Video, error)
	listFn             func(ctx context.Context) ([]*model.Video, error)
	getFn              func(ctx context.Context, id int64) (*model.Video, error)
	updateAnnotationFn func(ctx context.Context, id int64, title, overlayText string) (*model.Video, error)
	deleteFn           func(ctx context.Context, id int64) error
	bulkDeleteFn       func(ctx context.Context, ids []int64) ([]int64, error)

	getCount  atomic.Int32
	listCount atomic.Int32
}

func (m *mockCatalogService) Upload(ctx context.Context, input UploadInput) (*model.Video, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, input)
	}
	return nil, nil
}

func (m *mockCatalogService) List(ctx context.Context) ([]*model.Video, error) {
	m.listCount.Add(1)
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Video{}, nil
}

func (m *mockCatalogService) Get(ctx context.Context, id int64) (*model.Video, error) {
	m.getCount.Add(1)
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockCatalogService) UpdateAnnotation(ctx context.Context, id int64, title, overlayText string) (*model.Video, error) {
	if m.updateAnnotationFn != nil {
		return m.updateAnnotationFn(ctx, id, title, overlayText)
	}
	return &model.Video{ID: id, Title: title, OverlayText: overlayText}, nil
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
	return ids, nil
}

func (m *mockCatalogService) OpenVideo(ctx context.Context, filename string) (*repository.Object, error) {
	return nil, repository.ErrObjectNotFound
}

func (m *mockCatalogService) OpenThumbnail(ctx context.Context, filename string) (*repository.Object, error) {
	return newObject("placeholder.jpg", "image/jpeg", []byte("placeholder")), nil
}

func (m *mockCatalogService) OpenPlaceholder(ctx context.Context) (*repository.Object, error) {
	return newObject("placeholder.jpg", "image/jpeg", []byte("placeholder")), nil
}
