package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecocycle/internal/api"
	"ecocycle/internal/domain"
)

func TestImpact(t *testing.T) {
	h := newHarness(t)
	_, token := h.user("ada@example.com", domain.RoleUser)
	bo, _ := h.user("bo@example.com", domain.RoleUser)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/me/heartbeat", nil, token).Code)
	stale := time.Now().Add(-10 * time.Minute).UnixMilli()
	require.NoError(t, h.db.Model(&bo).Update("last_active", stale).Error)

	heavy := jpeg()
	heavy.fields = map[string]string{"weight_kg": "100"}
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, h.upload("/scans", token, heavy).Code)
	}
	h.cls.set("Organic", nil)
	require.Equal(t, http.StatusCreated, h.upload("/scans", token, heavy).Code)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/dumps", map[string]any{"location": "Ifo"}, "").Code)

	w := h.do(http.MethodGet, "/impact", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var imp api.Impact
	decode(t, w, &imp)
	assert.True(t, imp.WasteDivertedKg.Equal(decimal.NewFromInt(200)), "kg %s", imp.WasteDivertedKg)
	assert.EqualValues(t, 0, imp.WasteDivertedTons)
	assert.True(t, imp.RewardsPaid.Equal(d("6000")), "paid %s", imp.RewardsPaid)
	assert.EqualValues(t, 1, imp.ActiveUsers)
	assert.EqualValues(t, 2, imp.RegisteredUsers)
	assert.EqualValues(t, 1, imp.OpenDumpSites)
	assert.EqualValues(t, 5, imp.DropOffCenters)
	assert.Zero(t, imp.DropOffs)
	assert.False(t, imp.Cached)

	decode(t, h.do(http.MethodGet, "/impact", nil, ""), &imp)
	assert.True(t, imp.Cached)
}

func TestComputeImpactRoundsTons(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user("ada@example.com", domain.RoleUser)
	for i, kg := range []string{"900", "700"} {
		scan := domain.Scan{ID: path("scan-%d", i), UserID: u.ID, Category: "Metal", Recyclable: true, WeightKg: d(kg), Status: domain.ScanCredited}
		require.NoError(t, h.db.Create(&scan).Error)
	}
	imp, err := api.ComputeImpact(h.db, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, imp.WasteDivertedTons)
}

func TestPricingAndGuide(t *testing.T) {
	h := newHarness(t)

	var pricing struct {
		Currency string `json:"currency"`
		Pricing  []struct {
			Category   string  `json:"category"`
			PricePerKg float64 `json:"price_per_kg"`
		} `json:"pricing"`
	}
	decode(t, h.do(http.MethodGet, "/pricing", nil, ""), &pricing)
	assert.Equal(t, "NGN", pricing.Currency)
	require.Len(t, pricing.Pricing, 6)
	assert.Equal(t, "Plastic", pricing.Pricing[0].Category)
	assert.Equal(t, 30.0, pricing.Pricing[0].PricePerKg)

	var guide struct {
		Guide []struct {
			Category string `json:"category"`
			VideoID  string `json:"video_id"`
		} `json:"guide"`
	}
	decode(t, h.do(http.MethodGet, "/guide", nil, ""), &guide)
	require.NotEmpty(t, guide.Guide)
	assert.NotEmpty(t, guide.Guide[0].VideoID)
}
