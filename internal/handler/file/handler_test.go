package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharehandler "github.com/medvault/medvault-api/internal/handler/share"
	"github.com/medvault/medvault-api/internal/middleware"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository/repotest"
	"github.com/medvault/medvault-api/internal/service/audit"
	filesvc "github.com/medvault/medvault-api/internal/service/file"
	"github.com/medvault/medvault-api/internal/service/notification"
	sharesvc "github.com/medvault/medvault-api/internal/service/share"
)

// memBlobStore keeps object bytes in a map.
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

// newFileRouter mounts the file and share handlers the way the API
// router does, so flows spanning both can run end to end.
func newFileRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := repotest.NewUserRepo(
		&model.User{ID: uuid.New(), UserCode: "DOC-0001", Role: model.RoleDoctor, Name: "Dr. Owner", IsActive: true},
		&model.User{ID: uuid.New(), UserCode: "PAT-0001", Role: model.RolePatient, Name: "Pat Recipient", IsActive: true},
	)
	files := repotest.NewFileRepo()
	shares := repotest.NewShareRepo(files)
	outbox := repotest.NewOutboxRepo()
	auditor := audit.NewService(repotest.NewAuditRepo())

	fSvc := filesvc.NewService(files, shares, users, outbox, newMemBlobStore(), "medvault-files", auditor)
	sSvc := sharesvc.NewService(shares, files, users, repotest.NewConnectionRepo(), outbox,
		notification.NewService(repotest.NewNotificationRepo(), users), auditor)

	engine := gin.New()
	engine.Use(middleware.Actor())
	api := engine.Group("/api")
	NewHandler(fSvc, sSvc, 90).RegisterRoutes(api)
	sharehandler.NewHandler(sSvc).RegisterRoutes(api)
	return engine
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func uploadFile(t *testing.T, engine *gin.Engine, actor, name, content string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("encryption_meta", `{"alg":"AES-256-GCM","iv":"aWl2"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if actor != "" {
		req.Header.Set("X-User-Code", actor)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, actor string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-User-Code", actor)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestUploadConfirmShareDownloadFlow(t *testing.T) {
	engine := newFileRouter(t)

	rec, env := uploadFile(t, engine, "DOC-0001", "scan.pdf", "encrypted-bytes")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "success", env.Status)

	var stored model.EncryptedFile
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, model.UploadStatusPending, stored.UploadStatus)
	assert.Equal(t, "DOC-0001", stored.OwnerCode)

	rec, _ = doJSON(t, engine, http.MethodPost, "/api/files/confirm/"+stored.ID.String(), "DOC-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The recipient has no access until a share exists.
	req := httptest.NewRequest(http.MethodGet, "/api/files/download/"+stored.ID.String(), nil)
	req.Header.Set("X-User-Code", "PAT-0001")
	denied := httptest.NewRecorder()
	engine.ServeHTTP(denied, req)
	assert.Equal(t, http.StatusForbidden, denied.Code)

	rec, _ = doJSON(t, engine, http.MethodPost, "/api/shares/share", "DOC-0001", gin.H{
		"file_id":        stored.ID.String(),
		"recipient_code": "PAT-0001",
		"access_level":   "read",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/files/download/"+stored.ID.String(), nil)
	req.Header.Set("X-User-Code", "PAT-0001")
	download := httptest.NewRecorder()
	engine.ServeHTTP(download, req)
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, "encrypted-bytes", download.Body.String())
	assert.Equal(t, `attachment; filename="scan.pdf"`, download.Header().Get("Content-Disposition"))
}

func TestUploadRequiresActorHeader(t *testing.T) {
	engine := newFileRouter(t)

	rec, env := uploadFile(t, engine, "", "scan.pdf", "bytes")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Message, "X-User-Code")
}

func TestUploadRejectsInvalidEncryptionMeta(t *testing.T) {
	engine := newFileRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "scan.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("encryption_meta", "{not json"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Code", "DOC-0001")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	engine := newFileRouter(t)

	rec, env := uploadFile(t, engine, "DOC-0001", "malware.exe", "bytes")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", env.Status)
}

func TestMyFilesListing(t *testing.T) {
	engine := newFileRouter(t)

	_, env := uploadFile(t, engine, "DOC-0001", "scan.pdf", "bytes")
	var stored model.EncryptedFile
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	rec, _ := doJSON(t, engine, http.MethodPost, "/api/files/confirm/"+stored.ID.String(), "DOC-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, engine, http.MethodGet, "/api/files/my-files?filter=owned&sort_by=name&sort_dir=asc", "DOC-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.FileListResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "scan.pdf", resp.Files[0].FileName)
	assert.True(t, resp.Files[0].IsOwned)
	assert.Equal(t, 1, resp.Total)

	rec, _ = doJSON(t, engine, http.MethodGet, "/api/files/my-files", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRevokesAccess(t *testing.T) {
	engine := newFileRouter(t)

	_, env := uploadFile(t, engine, "DOC-0001", "scan.pdf", "bytes")
	var stored model.EncryptedFile
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	doJSON(t, engine, http.MethodPost, "/api/files/confirm/"+stored.ID.String(), "DOC-0001", nil)
	doJSON(t, engine, http.MethodPost, "/api/shares/share", "DOC-0001", gin.H{
		"file_id":        stored.ID.String(),
		"recipient_code": "PAT-0001",
		"access_level":   "read",
	})

	rec, _ := doJSON(t, engine, http.MethodDelete, "/api/files/delete/"+stored.ID.String(), "DOC-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/files/download/"+stored.ID.String(), nil)
	req.Header.Set("X-User-Code", "PAT-0001")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidFileIDIsBadRequest(t *testing.T) {
	engine := newFileRouter(t)

	rec, env := doJSON(t, engine, http.MethodPost, "/api/files/confirm/not-a-uuid", "DOC-0001", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", env.Status)
}
