package rag

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
)

type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	if f.putErr != nil {
		return StoredObject{}, f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (f *fakeObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeFileRepository struct {
	mu           sync.Mutex
	byID         map[string]File
	updateStatus []FileStatus
}

func newFakeFileRepository() *fakeFileRepository {
	return &fakeFileRepository{byID: make(map[string]File)}
}

func (f *fakeFileRepository) Create(ctx context.Context, file File) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[file.ID] = file
	return file, nil
}

func (f *fakeFileRepository) GetByID(ctx context.Context, id string) (File, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.byID[id]
	return file, ok, nil
}

func (f *fakeFileRepository) UpdateStatus(ctx context.Context, id string, status FileStatus, failureReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file := f.byID[id]
	file.Status = status
	file.FailureReason = failureReason
	f.byID[id] = file
	f.updateStatus = append(f.updateStatus, status)
	return nil
}

func (f *fakeFileRepository) UpdatePageCount(ctx context.Context, id string, pageCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file := f.byID[id]
	file.PageCount = &pageCount
	f.byID[id] = file
	return nil
}

func (f *fakeFileRepository) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeFileRepository) statusOf(id string) FileStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeChunkRepository struct {
	mu          sync.Mutex
	byID        map[string]DocumentChunk
	insertErr   error
	deletedFile []string
}

func newFakeChunkRepository() *fakeChunkRepository {
	return &fakeChunkRepository{byID: make(map[string]DocumentChunk)}
}

func (f *fakeChunkRepository) InsertBatch(ctx context.Context, chunks []DocumentChunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = syntheticChunkID(c.FileID, i)
		}
		f.byID[c.ID] = c
	}
	return nil
}

func (f *fakeChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DocumentChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunkRepository) GetByFile(ctx context.Context, fileID string) ([]DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DocumentChunk
	for _, c := range f.byID {
		if c.FileID == fileID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunkRepository) DeleteByFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFile = append(f.deletedFile, fileID)
	for id, c := range f.byID {
		if c.FileID == fileID {
			delete(f.byID, id)
		}
	}
	return nil
}

func syntheticChunkID(fileID string, i int) string {
	return fileID + "-chunk-" + strconv.Itoa(i)
}

type fakeIndex struct {
	mu          sync.Mutex
	upserted    int
	upsertErr   error
	searchHits  []SearchHit
	searchErr   error
	deletedFile []string
}

func (f *fakeIndex) Upsert(ctx context.Context, chunks []DocumentChunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted += len(chunks)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query, userID string, topK int, fileIDs []string) ([]SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeIndex) DeleteByFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFile = append(f.deletedFile, fileID)
	return nil
}

type fakeChunker struct{ parts []string }

func (f *fakeChunker) ChunkText(text string) []string {
	if f.parts != nil {
		return f.parts
	}
	return []string{text}
}

type fakeOCR struct {
	caption string
	err     error
}

func (f *fakeOCR) Extract(ctx context.Context, imageBytes []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.caption, nil
}

type fakeResizer struct {
	out []byte
	err error
}

func (f *fakeResizer) Downscale(imageBytes []byte, maxWidth, maxHeight int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return imageBytes, nil
}

type fakePDFExtractor struct {
	doc PDFDocument
	err error
}

func (f *fakePDFExtractor) Extract(pdfBytes []byte) (PDFDocument, error) {
	if f.err != nil {
		return PDFDocument{}, f.err
	}
	return f.doc, nil
}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

var errNotFound = &fakeErr{"not found"}
