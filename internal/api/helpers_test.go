package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rev2018/placement-tracker/internal/account"
	"github.com/rev2018/placement-tracker/internal/application"
	"github.com/rev2018/placement-tracker/internal/auth/authtest"
	"github.com/rev2018/placement-tracker/internal/config"
	"github.com/rev2018/placement-tracker/internal/dashboard"
	"github.com/rev2018/placement-tracker/internal/database/dbtest"
	"github.com/rev2018/placement-tracker/internal/export"
	"github.com/rev2018/placement-tracker/internal/storage"
)

// fakeRedis 是 authRedis 的内存实现。
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	// err 非空时所有命令都返回该错误，模拟 Redis 不可用。
	err error
}

func (r *fakeRedis) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (r *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return redis.NewIntResult(0, r.err)
	}
	var n int64
	if v, ok := r.values[key]; ok {
		n = int64(len(v))
	}
	n++
	r.values[key] = strings.Repeat("x", int(n))
	return redis.NewIntResult(n, nil)
}

func (r *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return redis.NewBoolResult(false, r.err)
	}
	if _, ok := r.values[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	r.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (r *fakeRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return redis.NewDurationResult(0, r.err)
	}
	if _, ok := r.values[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	if ttl, ok := r.ttls[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-1, nil)
}

func (r *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return redis.NewIntResult(0, r.err)
	}
	var n int64
	for _, key := range keys {
		if _, ok := r.values[key]; ok {
			n++
		}
		delete(r.values, key)
		delete(r.ttls, key)
	}
	return redis.NewIntResult(n, nil)
}

func (r *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return redis.NewStringResult("", r.err)
	}
	v, ok := r.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return redis.NewStatusResult("", r.err)
	}
	s, _ := value.(string)
	r.values[key] = s
	if expiration > 0 {
		r.ttls[key] = expiration
	} else {
		delete(r.ttls, key)
	}
	return redis.NewStatusResult("OK", nil)
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	types    map[string]string
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, contentType string) (*minio.UploadInfo, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	s.types[objectName] = contentType
	return &minio.UploadInfo{Key: objectName, Size: int64(len(b))}, nil
}

func (s *fakeStorage) StatObject(_ context.Context, objectKey string) (storage.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploaded[objectKey]
	if !ok {
		return storage.ObjectMeta{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, objectKey)
	}
	return storage.ObjectMeta{Key: objectKey, Size: int64(len(b))}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://files.example.invalid/" + objectKey + "?sig=1", nil
}

func (s *fakeStorage) ListObjects(_ context.Context, prefix string, limit int) ([]storage.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.uploaded))
	for key := range s.uploaded {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]storage.ObjectMeta, 0, len(keys))
	for _, key := range keys {
		if len(out) >= limit {
			break
		}
		out = append(out, storage.ObjectMeta{Key: key, Size: int64(len(s.uploaded[key]))})
	}
	return out, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

type testServer struct {
	router  *gin.Engine
	redis   *fakeRedis
	storage *fakeStorage
	logs    *bytes.Buffer
}

type serverOption func(*testServerOptions)

type testServerOptions struct {
	guard   LoginGuard
	scanner VirusScanner
}

func withGuard(guard LoginGuard) serverOption {
	return func(o *testServerOptions) { o.guard = guard }
}

func withScanner(scanner VirusScanner) serverOption {
	return func(o *testServerOptions) { o.scanner = scanner }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	options := testServerOptions{
		guard: LoginGuard{RateLimitPerHour: 100, LockThreshold: 100, LockTTL: 15 * time.Minute},
	}
	for _, opt := range opts {
		opt(&options)
	}

	db := dbtest.Open(t)
	authService := authtest.NewService(t)
	repo := application.NewRepository(db)
	fakeRedisClient := newFakeRedis()
	fakeStore := newFakeStorage()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	router := NewRouter(config.APIConfig{GinMode: gin.TestMode}, logger)
	RegisterRoutes(router, authService, Handlers{
		Auth:         NewAuthHandler(account.NewStore(db, 6), authService, fakeRedisClient, options.guard, ""),
		Applications: NewApplicationHandler(repo, dashboard.NewEngine(repo), export.NewExporter(repo)),
		Resumes:      NewResumeHandler(fakeStore, options.scanner, 1<<20),
	})

	return &testServer{router: router, redis: fakeRedisClient, storage: fakeStore, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signup 注册并登录，返回访问令牌与刷新 Cookie。
func (s *testServer) signup(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{
		"full_name": "Test User",
		"email":     email,
		"password":  "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return s.login(t, email, "secret123")
}

func (s *testServer) login(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken, refreshCookie(t, rec)
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == refreshTokenCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("refresh cookie not set")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}
