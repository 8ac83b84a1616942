package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocycle/internal/classifier"
	"ecocycle/internal/domain"
)

type scanBody struct {
	Scan       domain.Scan     `json:"scan"`
	Class      string          `json:"class"`
	Recyclable bool            `json:"recyclable"`
	Reward     decimal.Decimal `json:"reward"`
	Balance    decimal.Decimal `json:"balance"`
	Replayed   bool            `json:"replayed"`
}

func TestCreateScan(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)

	up := jpeg()
	up.fields = map[string]string{"weight_kg": "2"}
	w := h.upload("/scans", token, up)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body scanBody
	decode(t, w, &body)
	assert.Equal(t, "Plastic", body.Class)
	assert.True(t, body.Recyclable)
	assert.True(t, body.Reward.Equal(d("60")))
	assert.True(t, body.Balance.Equal(d("60")))
	assert.NotEmpty(t, body.Scan.ID)
	assert.Contains(t, w.Body.String(), `"debug"`)

	var wallet walletBody
	decode(t, h.do(http.MethodGet, "/wallet", nil, token), &wallet)
	assert.True(t, wallet.Wallet.Balance.Equal(d("60")))
}

func TestCreateScanReplay(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)

	up := jpeg()
	up.headers = map[string]string{"Idempotency-Key": "photo-42"}
	first := h.upload("/scans", token, up)
	require.Equal(t, http.StatusCreated, first.Code)
	second := h.upload("/scans", token, up)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b scanBody
	decode(t, first, &a)
	decode(t, second, &b)
	assert.True(t, b.Replayed)
	assert.Equal(t, a.Scan.ID, b.Scan.ID)
	assert.True(t, b.Balance.Equal(d("30")))
}

func TestCreateScanRejections(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, h.upload("/scans", "", jpeg()).Code)

	w := h.upload("/scans", token, upload{contentType: "text/plain", data: []byte("hello")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Must be an image", errorOf(t, w))

	big := jpeg()
	big.data = make([]byte, 2048)
	assert.Equal(t, http.StatusRequestEntityTooLarge, h.upload("/scans", token, big).Code)

	bad := jpeg()
	bad.fields = map[string]string{"weight_kg": "250"}
	assert.Equal(t, http.StatusBadRequest, h.upload("/scans", token, bad).Code)
}

func TestCreateScanUpstreamFailures(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)

	h.cls.set("", fmt.Errorf("%w: status 500", classifier.ErrUpstream))
	w := h.upload("/scans", token, jpeg())
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, errorOf(t, w), "AI Error: ")

	h.cls.set("", classifier.ErrCircuitOpen)
	assert.Equal(t, http.StatusServiceUnavailable, h.upload("/scans", token, jpeg()).Code)

	var n int64
	require.NoError(t, h.db.Model(&domain.Scan{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateScanRateLimit(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)

	for i := 0; i < h.cfg.ScanRatePerMin; i++ {
		require.Equal(t, http.StatusCreated, h.upload("/scans", token, jpeg()).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, h.upload("/scans", token, jpeg()).Code)
}

func TestListScans(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)
	h.cls.set("Organic", nil)
	require.Equal(t, http.StatusCreated, h.upload("/scans", token, jpeg()).Code)

	var body struct {
		Scans []domain.Scan `json:"scans"`
		Total int64         `json:"total"`
	}
	decode(t, h.do(http.MethodGet, "/scans", nil, token), &body)
	require.Len(t, body.Scans, 1)
	assert.EqualValues(t, 1, body.Total)
	assert.Equal(t, classifier.NonRecyclable, body.Scans[0].Class)
	assert.True(t, body.Scans[0].Reward.IsZero())
}
