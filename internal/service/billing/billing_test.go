package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/notify"
	"github.com/oggyb/pulse/internal/service/billing"
	"github.com/oggyb/pulse/internal/testutil"
)

type fakeLinker struct {
	mu       sync.Mutex
	invoices []billing.Invoice
	err      error
}

func (f *fakeLinker) CreateInvoiceLink(_ context.Context, inv billing.Invoice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.invoices = append(f.invoices, inv)
	return "https://t.me/$" + inv.Payload, nil
}

func setup(t *testing.T) (*testutil.Env, *billing.Service, *fakeLinker, *notify.Recorder) {
	t.Helper()
	env := testutil.NewEnv(t)
	env.User(t, 1, "Anna")
	linker := &fakeLinker{}
	rec := &notify.Recorder{}
	return env, billing.NewService(env.App, linker, rec), linker, rec
}

func loadUser(t *testing.T, env *testutil.Env, id int64) db.User {
	t.Helper()
	var u db.User
	require.NoError(t, env.DB.First(&u, "id = ?", id).Error)
	return u
}

func TestDiscountedPrice(t *testing.T) {
	assert.Equal(t, 150, billing.DiscountedPrice(150, 0))
	assert.Equal(t, 120, billing.DiscountedPrice(150, 20))
	assert.Equal(t, 350, billing.DiscountedPrice(699, 50))
	assert.Equal(t, 1, billing.DiscountedPrice(150, 100))
	assert.Equal(t, 1, billing.DiscountedPrice(1, 60))
}

func TestCreateInvoice(t *testing.T) {
	env, svc, linker, _ := setup(t)
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, 1, "weekly")
	assert.ErrorIs(t, err, svcErr.ErrUnknownTier)

	require.NoError(t, env.DB.Model(&db.User{}).Where("id = ?", 1).Update("discount", 20).Error)
	res, err := svc.CreateInvoice(ctx, 1, billing.TierMonthly)
	require.NoError(t, err)
	assert.Equal(t, 120, res.Amount)
	assert.Len(t, res.Payload, 32)
	assert.Contains(t, res.InvoiceLink, res.Payload)

	require.Len(t, linker.invoices, 1)
	assert.Equal(t, db.CurrencyStars, linker.invoices[0].Currency)
	assert.Contains(t, linker.invoices[0].Description, "20% discount")

	pending, err := svc.IsPending(ctx, res.Payload)
	require.NoError(t, err)
	assert.True(t, pending)

	pending, err = svc.IsPending(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, pending)

	linker.err = errors.New("telegram down")
	_, err = svc.CreateInvoice(ctx, 1, billing.TierYearly)
	assert.Equal(t, svcErr.KindUpstream, svcErr.KindOf(err))
}

func TestFulfill_IsIdempotentAndStacks(t *testing.T) {
	env, svc, _, rec := setup(t)
	ctx := context.Background()
	now := env.App.Now()

	require.NoError(t, env.DB.Model(&db.User{}).Where("id = ?", 1).
		Updates(map[string]any{"discount": 30, "applied_promo_code": "SPRING"}).Error)

	inv, err := svc.CreateInvoice(ctx, 1, billing.TierMonthly)
	require.NoError(t, err)
	assert.Equal(t, 105, inv.Amount)

	p, err := svc.Fulfill(ctx, inv.Payload, "charge-1")
	require.NoError(t, err)
	assert.Equal(t, db.PaymentCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)

	u := loadUser(t, env, 1)
	assert.True(t, u.IsPremium)
	require.NotNil(t, u.PremiumUntil)
	assert.Equal(t, now.Add(30*24*time.Hour), u.PremiumUntil.UTC())
	assert.Zero(t, u.Discount)
	assert.Nil(t, u.AppliedPromoCode)

	again, err := svc.Fulfill(ctx, inv.Payload, "charge-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, now.Add(30*24*time.Hour), loadUser(t, env, 1).PremiumUntil.UTC(), "second delivery changes nothing")
	assert.Equal(t, []string{"premium_activated"}, rec.Kinds())

	env.Clock.Advance(10 * 24 * time.Hour)
	inv2, err := svc.CreateInvoice(ctx, 1, billing.TierSixMonths)
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, inv2.Payload, "charge-2")
	require.NoError(t, err)
	assert.Equal(t, now.Add(210*24*time.Hour), loadUser(t, env, 1).PremiumUntil.UTC(), "stacked onto the unexpired window")

	_, err = svc.Fulfill(ctx, "missing", "x")
	assert.ErrorIs(t, err, svcErr.ErrPaymentUnknown)

	st, err := svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.IsPremium)
	require.NotNil(t, st.LastPayment)
	assert.Equal(t, billing.TierSixMonths, st.LastPayment.Tier)
}

func TestFulfill_ExpiredWindowStartsFromNow(t *testing.T) {
	env, svc, _, _ := setup(t)
	ctx := context.Background()
	env.Premium(t, 1, env.App.Now().Add(-48*time.Hour))

	inv, err := svc.CreateInvoice(ctx, 1, billing.TierYearly)
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, inv.Payload, "c")
	require.NoError(t, err)
	assert.Equal(t, env.App.Now().Add(365*24*time.Hour), loadUser(t, env, 1).PremiumUntil.UTC())
}

func TestFulfill_ConcurrentDeliveries(t *testing.T) {
	env, svc, _, rec := setup(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, 1, billing.TierMonthly)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Fulfill(ctx, inv.Payload, "charge")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, env.App.Now().Add(30*24*time.Hour), loadUser(t, env, 1).PremiumUntil.UTC())
	assert.Len(t, rec.Sent(), 1)
}

func TestPromos(t *testing.T) {
	env, svc, _, _ := setup(t)
	ctx := context.Background()
	env.User(t, 2, "Bob")
	env.User(t, 3, "Cleo")
	now := env.App.Now()

	one := 1
	_, err := svc.CreatePromo(ctx, billing.PromoInput{Code: "welcome7", Type: db.PromoPremium, Value: 7})
	require.NoError(t, err)
	_, err = svc.CreatePromo(ctx, billing.PromoInput{Code: "HALF", Type: db.PromoDiscount, Value: 50, UsageLimit: &one})
	require.NoError(t, err)
	past := now.Add(-time.Hour)
	_, err = svc.CreatePromo(ctx, billing.PromoInput{Code: "OLD", Type: db.PromoPremium, Value: 3, ExpiresAt: &past})
	require.NoError(t, err)

	_, err = svc.CreatePromo(ctx, billing.PromoInput{Code: "Welcome7", Type: db.PromoPremium, Value: 1})
	assert.ErrorIs(t, err, svcErr.ErrPromoExists)
	_, err = svc.CreatePromo(ctx, billing.PromoInput{Code: "BIG", Type: db.PromoDiscount, Value: 150})
	assert.Equal(t, svcErr.KindInvalidArgument, svcErr.KindOf(err))

	t.Run("validate", func(t *testing.T) {
		p, err := svc.ValidatePromo(ctx, " welcome7 ")
		require.NoError(t, err)
		assert.Equal(t, "WELCOME7", p.Code)

		_, err = svc.ValidatePromo(ctx, "NOPE")
		assert.ErrorIs(t, err, svcErr.ErrInvalidPromo)
		_, err = svc.ValidatePromo(ctx, "OLD")
		assert.ErrorIs(t, err, svcErr.ErrPromoExpired)
	})

	t.Run("premium days", func(t *testing.T) {
		res, err := svc.ApplyPromo(ctx, 1, "welcome7")
		require.NoError(t, err)
		assert.Equal(t, 7, res.Days)
		assert.Equal(t, now.Add(7*24*time.Hour), res.PremiumUntil.UTC())

		_, err = svc.ApplyPromo(ctx, 1, "WELCOME7")
		assert.ErrorIs(t, err, svcErr.ErrPromoApplied)
	})

	t.Run("discount with usage limit", func(t *testing.T) {
		res, err := svc.ApplyPromo(ctx, 2, "half")
		require.NoError(t, err)
		assert.Equal(t, 50, res.Discount)
		assert.Equal(t, 50, loadUser(t, env, 2).Discount)

		_, err = svc.ApplyPromo(ctx, 3, "HALF")
		assert.ErrorIs(t, err, svcErr.ErrPromoLimit)
		assert.Zero(t, loadUser(t, env, 3).Discount)

		tiers, err := svc.TiersFor(ctx, 2)
		require.NoError(t, err)
		require.Len(t, tiers, 3)
		assert.Equal(t, 75, tiers[0].Price)
		assert.Equal(t, 150, tiers[0].OriginalPrice)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := svc.ApplyPromo(ctx, 3, "OLD")
		assert.ErrorIs(t, err, svcErr.ErrPromoExpired)
	})

	codes, err := svc.Promos(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 3)
}
