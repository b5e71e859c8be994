package auth_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arka-retail/arka/internal/app"
	"github.com/arka-retail/arka/internal/auth"
	"github.com/arka-retail/arka/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func newAuthRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(testLogger(), auth.NewService(repo), sessionManager)

	r := chi.NewRouter()
	for _, mw := range app.MiddlewareStack(app.MiddlewareConfig{
		Logger:         testLogger(),
		SessionManager: sessionManager,
	}) {
		r.Use(mw)
	}
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func testUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{ID: 1, Email: "owner@arka.test", PasswordHash: string(hashed), IsActive: true}
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: testUser(t, "correct-horse")}
	router, _ := newAuthRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@arka.test","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "owner@arka.test")
	require.Len(t, repo.sessions, 1)
	require.NotEmpty(t, res.Result().Cookies())
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{user: testUser(t, "correct-horse")}
	router, _ := newAuthRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@arka.test","password":"wrong-password"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Empty(t, repo.sessions)
}

func TestLoginInactiveAccount(t *testing.T) {
	user := testUser(t, "correct-horse")
	user.IsActive = false
	router, _ := newAuthRouter(t, &stubRepo{user: user})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@arka.test","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidation(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"not-an-email","password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	repo := &stubRepo{user: testUser(t, "correct-horse")}
	router, _ := newAuthRouter(t, repo)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@arka.test","password":"correct-horse"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	router.ServeHTTP(loginRes, loginReq)
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookies := loginRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, c := range cookies {
		logoutReq.AddCookie(c)
	}
	logoutRes := httptest.NewRecorder()
	router.ServeHTTP(logoutRes, logoutReq)

	require.Equal(t, http.StatusNoContent, logoutRes.Code)
	require.Empty(t, repo.sessions)
}
