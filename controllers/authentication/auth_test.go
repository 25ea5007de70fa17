package authentication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wander-stories-backend/config"
	"wander-stories-backend/models/users"
)

var testSecret = []byte("test-secret")

func setupDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&users.User{}))
	config.DB = db
}

func TestTokenRoundTrip(t *testing.T) {
	user := users.User{ID: 7, Name: "User One", Email: "u1@example.com", Role: "user"}
	token, err := GenerateToken(user, testSecret, time.Hour)
	require.NoError(t, err)

	identity, err := JWTVerifier{Secret: testSecret}.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "7", identity.UserID)
	assert.Equal(t, "u1@example.com", identity.Email)
	assert.Equal(t, "User One", identity.DisplayName)
	assert.Equal(t, "user", identity.Role)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := JWTVerifier{Secret: testSecret}

	_, err := v.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	expired, err := GenerateToken(users.User{ID: 1}, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	wrongKey, err := GenerateToken(users.User{ID: 1}, []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), wrongKey)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := BearerToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set("Authorization", "Bearer ")
	_, err = BearerToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = BearerToken(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set("Authorization", "Bearer abc123")
	token, err := BearerToken(req)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestRegisterAndLogin(t *testing.T) {
	setupDB(t)

	body, _ := json.Marshal(map[string]string{
		"name":     "User One",
		"email":    "u1@example.com",
		"password": "hunter22",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	Register(rec, req, testSecret)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Token)

	identity, err := JWTVerifier{Secret: testSecret}.Verify(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", identity.Email)

	// Duplicate registration is refused.
	req = httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	Register(rec, req, testSecret)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login with the right password.
	login, _ := json.Marshal(map[string]string{"email": "u1@example.com", "password": "hunter22"})
	req = httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(login))
	rec = httptest.NewRecorder()
	Login(rec, req, testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)

	// And with the wrong one.
	badLogin, _ := json.Marshal(map[string]string{"email": "u1@example.com", "password": "wrong"})
	req = httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(badLogin))
	rec = httptest.NewRecorder()
	Login(rec, req, testSecret)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	setupDB(t)

	body, _ := json.Marshal(map[string]string{"email": "", "password": ""})
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	Register(rec, req, testSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
