package rewards_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ecocycle/internal/catalog"
	"ecocycle/internal/classifier"
	"ecocycle/internal/db"
	"ecocycle/internal/domain"
	"ecocycle/internal/ledger"
	"ecocycle/internal/realtime"
	"ecocycle/internal/rewards"
	"ecocycle/internal/testsupport"
	"ecocycle/internal/utils"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeClassifier struct {
	category string
	err      error
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, image []byte, _ string) (*classifier.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	price := catalog.Default().PriceFor(f.category)
	res := &classifier.Result{
		Category:   f.category,
		Class:      f.category,
		Confidence: 0.91,
		Recyclable: price.IsPositive(),
		PricePerKg: price,
		Debug:      classifier.Debug{Reasoning: "looks like " + f.category, Model: "test-vision"},
	}
	if !res.Recyclable {
		res.Class = classifier.NonRecyclable
	}
	return res, nil
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
}

func (r *recorder) Publish(topic string, ev realtime.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string][]realtime.Event{}
	}
	r.events[topic] = append(r.events[topic], ev)
	return 1
}

func (r *recorder) of(topic string) []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[topic]
}

type fakeMirror struct {
	balances map[uint]decimal.Decimal
}

func (m *fakeMirror) SyncWallet(_ context.Context, userID uint, balance decimal.Decimal) error {
	m.balances[userID] = balance
	return nil
}

func (m *fakeMirror) PublishDump(context.Context, domain.DumpReport) error { return nil }

type fakeImages struct {
	keys []string
	err  error
}

func (f *fakeImages) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "gs://test/" + key, nil
}

type fixture struct {
	db     *gorm.DB
	cls    *fakeClassifier
	events *recorder
	mirror *fakeMirror
	images *fakeImages
	svc    *rewards.Service
	user   domain.User
}

func newFixture(t *testing.T, category string) *fixture {
	t.Helper()
	gdb := testsupport.NewDB(t)
	rdb, _ := testsupport.NewRedis(t)
	require.NoError(t, db.SeedCenters(gdb, catalog.Default().CenterModels()))
	f := &fixture{
		db:     gdb,
		cls:    &fakeClassifier{category: category},
		events: &recorder{},
		mirror: &fakeMirror{balances: map[uint]decimal.Decimal{}},
		images: &fakeImages{},
	}
	f.svc = rewards.NewService(rewards.Deps{
		DB:         gdb,
		Redis:      rdb,
		Classifier: f.cls,
		Images:     f.images,
		Mirror:     f.mirror,
		Events:     f.events,
	})
	f.user = testsupport.CreateUser(t, gdb, "ada@example.com", domain.RoleUser)
	return f
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := ledger.WalletByUser(f.db, f.user.ID)
	require.NoError(t, err)
	return w.Balance
}

func TestScanCreditsReward(t *testing.T) {
	f := newFixture(t, "Plastic")

	out, err := f.svc.Scan(context.Background(), f.user.ID, rewards.ScanInput{
		Image:       []byte("jpeg"),
		ContentType: "image/png",
		WeightKg:    d("2.5"),
	})
	require.NoError(t, err)

	assert.False(t, out.Replayed)
	assert.True(t, out.Scan.Reward.Equal(d("75")), "got %s", out.Scan.Reward)
	assert.True(t, out.Balance.Equal(d("75")))
	assert.True(t, f.balance(t).Equal(d("75")))
	assert.Equal(t, domain.ScanCredited, out.Scan.Status)
	assert.Equal(t, "gs://test/scans/1/"+out.Scan.ID+".png", out.Scan.ImageRef)

	applied, err := ledger.Applied(f.db, rewards.RewardReference(out.Scan.ID))
	require.NoError(t, err)
	assert.True(t, applied)

	evs := f.events.of(realtime.WalletTopic(f.user.ID))
	require.Len(t, evs, 1)
	assert.Equal(t, realtime.EventWalletUpdated, evs[0].Type)
	assert.True(t, f.mirror.balances[f.user.ID].Equal(d("75")))
}

func TestScanDefaultsWeightToOneKg(t *testing.T) {
	f := newFixture(t, "Metal")

	out, err := f.svc.Scan(context.Background(), f.user.ID, rewards.ScanInput{Image: []byte("x")})
	require.NoError(t, err)
	assert.True(t, out.Scan.WeightKg.Equal(d("1")))
	assert.True(t, out.Scan.Reward.Equal(d("50")))
}

func TestScanNonRecyclableCreditsNothing(t *testing.T) {
	f := newFixture(t, "Organic")

	out, err := f.svc.Scan(context.Background(), f.user.ID, rewards.ScanInput{Image: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, classifier.NonRecyclable, out.Scan.Class)
	assert.False(t, out.Scan.Recyclable)
	assert.True(t, out.Scan.Reward.IsZero())
	assert.True(t, f.balance(t).IsZero())

	var n int64
	require.NoError(t, f.db.Model(&domain.Transaction{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestScanRejectsBadInput(t *testing.T) {
	f := newFixture(t, "Plastic")
	ctx := context.Background()

	_, err := f.svc.Scan(ctx, f.user.ID, rewards.ScanInput{})
	assert.ErrorIs(t, err, rewards.ErrEmptyImage)

	for _, w := range []string{"-1", "100.001"} {
		_, err = f.svc.Scan(ctx, f.user.ID, rewards.ScanInput{Image: []byte("x"), WeightKg: d(w)})
		assert.ErrorIs(t, err, rewards.ErrInvalidWeight, w)
	}
	assert.Zero(t, f.cls.calls)
}

func TestScanUpstreamFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, "Plastic")
	f.cls.err = classifier.ErrUpstream

	_, err := f.svc.Scan(context.Background(), f.user.ID, rewards.ScanInput{Image: []byte("x")})
	require.ErrorIs(t, err, classifier.ErrUpstream)

	var n int64
	require.NoError(t, f.db.Model(&domain.Scan{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.True(t, f.balance(t).IsZero())
}

func TestScanIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t, "Paper")
	ctx := context.Background()
	in := rewards.ScanInput{Image: []byte("x"), WeightKg: d("3"), IdempotencyKey: "req-1"}

	first, err := f.svc.Scan(ctx, f.user.ID, in)
	require.NoError(t, err)
	second, err := f.svc.Scan(ctx, f.user.ID, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Nil(t, second.Result)
	assert.Equal(t, first.Scan.ID, second.Scan.ID)
	assert.Equal(t, 1, f.cls.calls)
	assert.True(t, f.balance(t).Equal(d("30")))

	// the key is scoped to the user
	other := testsupport.CreateUser(t, f.db, "bo@example.com", domain.RoleUser)
	third, err := f.svc.Scan(ctx, other.ID, in)
	require.NoError(t, err)
	assert.False(t, third.Replayed)
}

// gatedClassifier holds every caller until release is closed.
type gatedClassifier struct {
	inner   *fakeClassifier
	mu      sync.Mutex
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedClassifier) Classify(ctx context.Context, image []byte, contentType string) (*classifier.Result, error) {
	g.arrived <- struct{}{}
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Classify(ctx, image, contentType)
}

func TestConcurrentScansWithSameKeyCreditOnce(t *testing.T) {
	f := newFixture(t, "Metal")
	gate := &gatedClassifier{
		inner:   f.cls,
		arrived: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc := rewards.NewService(rewards.Deps{DB: f.db, Classifier: gate, Events: f.events})
	in := rewards.ScanInput{Image: []byte("x"), WeightKg: d("2"), IdempotencyKey: "tap-twice"}

	outs := make([]*rewards.ScanOutcome, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = svc.Scan(context.Background(), f.user.ID, in)
		}(i)
	}
	// both requests pass the key lookup before either stores its scan
	for i := 0; i < 2; i++ {
		select {
		case <-gate.arrived:
		case <-time.After(5 * time.Second):
			close(gate.release)
			t.Fatal("scans did not reach the classifier together")
		}
	}
	close(gate.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, outs[0].Replayed, outs[1].Replayed)
	assert.Equal(t, outs[0].Scan.ID, outs[1].Scan.ID)
	assert.True(t, f.balance(t).Equal(d("100")))

	var scans, credits int64
	require.NoError(t, f.db.Model(&domain.Scan{}).Count(&scans).Error)
	require.NoError(t, f.db.Model(&domain.Transaction{}).Where("type = ?", domain.TxReward).Count(&credits).Error)
	assert.EqualValues(t, 1, scans)
	assert.EqualValues(t, 1, credits)
}

func TestScanImageUploadFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "Glass")
	f.images.err = errors.New("bucket missing")

	out, err := f.svc.Scan(context.Background(), f.user.ID, rewards.ScanInput{Image: []byte("x")})
	require.NoError(t, err)
	assert.Empty(t, out.Scan.ImageRef)
	assert.True(t, out.Balance.Equal(d("20")))
}

func TestListScans(t *testing.T) {
	f := newFixture(t, "Plastic")
	for i := 0; i < 3; i++ {
		_, err := f.svc.Scan(context.Background(), f.user.ID, rewards.ScanInput{Image: []byte("x")})
		require.NoError(t, err)
	}

	scans, total, err := f.svc.ListScans(f.user.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, scans, 2)
	assert.Equal(t, 2, utils.TotalPages(total, 2))

	scans, total, err = f.svc.ListScans(999, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, scans)
}
