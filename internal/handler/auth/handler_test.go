package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medvault/medvault-api/internal/middleware"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/otp"
	"github.com/medvault/medvault-api/internal/repository/repotest"
	"github.com/medvault/medvault-api/internal/service/audit"
	authsvc "github.com/medvault/medvault-api/internal/service/auth"
	pkgauth "github.com/medvault/medvault-api/pkg/auth"
	"github.com/medvault/medvault-api/pkg/security"
)

type fakeEmail struct{}

func (fakeEmail) SendOTP(ctx context.Context, to, code string) error { return nil }
func (fakeEmail) SendTemporaryPassword(ctx context.Context, to, name, tempPassword string) error {
	return nil
}
func (fakeEmail) SendCustom(ctx context.Context, to, subject, content string) error { return nil }

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	users := repotest.NewUserRepo(&model.User{
		ID:           uuid.New(),
		UserCode:     "DOC-0001",
		Role:         model.RoleDoctor,
		Name:         "Dr. One",
		Email:        "doc@example.com",
		PasswordHash: hash,
		IsActive:     true,
	})
	svc := authsvc.NewService(
		users,
		repotest.NewBiometricRepo(),
		otp.NewStore(),
		fakeEmail{},
		hasher,
		pkgauth.NewJWTService("test-secret", time.Hour),
		audit.NewService(repotest.NewAuditRepo()),
	)

	engine := gin.New()
	engine.Use(middleware.Actor())
	NewHandler(svc).RegisterRoutes(engine.Group("/api"))
	return engine
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestLoginAndVerifyOverHTTP(t *testing.T) {
	engine := newAuthRouter(t)

	rec, env := postJSON(t, engine, "/api/auth/login", gin.H{
		"role":      "doctor",
		"user_code": "DOC-0001",
		"password":  "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", env.Status)

	var login model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, "doc@example.com", login.Email)
	require.Len(t, login.Otp, 6)

	rec, env = postJSON(t, engine, "/api/auth/verify", gin.H{
		"email": login.Email,
		"code":  login.Otp,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var verified model.VerifyCodeResponse
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	assert.NotEmpty(t, verified.Token)
	require.NotNil(t, verified.User)
	assert.Equal(t, "DOC-0001", verified.User.UserCode)

	// The challenge is single use.
	rec, _ = postJSON(t, engine, "/api/auth/verify", gin.H{
		"email": login.Email,
		"code":  login.Otp,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	engine := newAuthRouter(t)

	rec, env := postJSON(t, engine, "/api/auth/login", gin.H{
		"role":      "doctor",
		"user_code": "DOC-0001",
		"password":  "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", env.Status)
}

func TestLoginValidatesRole(t *testing.T) {
	engine := newAuthRouter(t)

	rec, _ := postJSON(t, engine, "/api/auth/login", gin.H{
		"role":      "superuser",
		"user_code": "DOC-0001",
		"password":  "correct-horse",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyValidatesCodeLength(t *testing.T) {
	engine := newAuthRouter(t)

	rec, _ := postJSON(t, engine, "/api/auth/verify", gin.H{
		"email": "doc@example.com",
		"code":  "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserOverHTTP(t *testing.T) {
	engine := newAuthRouter(t)

	rec, env := postJSON(t, engine, "/api/auth/create-user", gin.H{
		"full_name": "Pat One",
		"email":     "pat@example.com",
		"role":      "patient",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.CreateUserResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PAT-0001", created.User.UserCode)
	assert.NotEmpty(t, created.TempPassword)

	// Duplicate email conflicts.
	rec, _ = postJSON(t, engine, "/api/auth/create-user", gin.H{
		"full_name": "Pat Again",
		"email":     "pat@example.com",
		"role":      "patient",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
