package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ecocycle/internal/api"
	"ecocycle/internal/catalog"
	"ecocycle/internal/classifier"
	"ecocycle/internal/config"
	"ecocycle/internal/db"
	"ecocycle/internal/domain"
	"ecocycle/internal/realtime"
	"ecocycle/internal/rewards"
	"ecocycle/internal/testsupport"
	"ecocycle/internal/utils"
)

const jwtSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeClassifier struct {
	mu       sync.Mutex
	category string
	err      error
	pingErr  error
}

func (f *fakeClassifier) set(category string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.category, f.err = category, err
}

func (f *fakeClassifier) Classify(_ context.Context, _ []byte, _ string) (*classifier.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	price := catalog.Default().PriceFor(f.category)
	res := &classifier.Result{
		Category:   f.category,
		Class:      f.category,
		Confidence: 0.88,
		Recyclable: price.IsPositive(),
		PricePerKg: price,
		Debug:      classifier.Debug{Reasoning: "test", Model: "test-vision"},
	}
	if !res.Recyclable {
		res.Class = classifier.NonRecyclable
	}
	return res, nil
}

func (f *fakeClassifier) Ping(context.Context) (string, error) {
	if f.pingErr != nil {
		return "", f.pingErr
	}
	return "Hello!", nil
}

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

type harness struct {
	t      *testing.T
	cfg    *config.Config
	db     *gorm.DB
	rdb    *redis.Client
	mr     *miniredis.Miniredis
	hub    *realtime.Hub
	cls    *fakeClassifier
	mailer *captureMailer
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := testsupport.NewDB(t)
	rdb, mr := testsupport.NewRedis(t)
	cat := catalog.Default()
	require.NoError(t, db.SeedCenters(gdb, cat.CenterModels()))

	h := &harness{
		t: t,
		cfg: &config.Config{
			JWTSecret:        jwtSecret,
			MaxUploadBytes:   1024,
			ScanRatePerMin:   3,
			LoginMaxAttempts: 5,
		},
		db:     gdb,
		rdb:    rdb,
		mr:     mr,
		hub:    realtime.NewHub(),
		cls:    &fakeClassifier{category: "Plastic"},
		mailer: &captureMailer{tokens: map[string]string{}},
	}
	t.Cleanup(h.hub.Close)
	svc := rewards.NewService(rewards.Deps{DB: gdb, Redis: rdb, Classifier: h.cls, Events: h.hub})
	h.router = api.NewRouter(api.Deps{
		Config:     h.cfg,
		DB:         gdb,
		Redis:      rdb,
		Catalog:    cat,
		Classifier: h.cls,
		Rewards:    svc,
		Hub:        h.hub,
		Mailer:     h.mailer,
	})
	return h
}

// user creates an account with password "secret1" and returns its token
func (h *harness) user(email, role string) (domain.User, string) {
	h.t.Helper()
	u := testsupport.CreateUser(h.t, h.db, email, role)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(h.t, err)
	require.NoError(h.t, h.db.Model(&u).Update("password", string(hash)).Error)
	token, err := utils.GenerateJWT(u.ID, u.Email, jwtSecret)
	require.NoError(h.t, err)
	return u, token
}

func (h *harness) fund(u domain.User, amount string) {
	h.t.Helper()
	require.NoError(h.t, h.db.Model(&domain.Wallet{}).Where("user_id = ?", u.ID).Update("balance", d(amount)).Error)
}

func (h *harness) do(method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

type upload struct {
	contentType string
	data        []byte
	fields      map[string]string
	headers     map[string]string
}

func (h *harness) upload(path, token string, u upload) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo"`)
	if u.contentType != "" {
		hdr.Set("Content-Type", u.contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(h.t, err)
	_, err = part.Write(u.data)
	require.NoError(h.t, err)
	for k, v := range u.fields {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range u.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func jpeg() upload {
	return upload{contentType: "image/jpeg", data: []byte("\xff\xd8\xff\xe0fake-jpeg")}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func path(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
