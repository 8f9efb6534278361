package services_test

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafline/internal/domain"
	"leafline/internal/services"
)

func TestQuoteWorkedExample(t *testing.T) {
	p := services.NewPricer(services.DefaultShippingSchedule())
	b, err := p.Quote(domain.ShippingExpress, dec("1000"), dec("0.37"), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "1049.63", b.Total.StringFixed(2))
	assert.True(t, dec("150").Equal(b.Shipping))
	assert.False(t, b.Clamped)
}

func TestQuoteClampsNegativeTotal(t *testing.T) {
	p := services.NewPricer(services.DefaultShippingSchedule())
	b, err := p.Quote(domain.ShippingStandard, dec("10"), dec("0.50"), dec("20"))
	require.ErrorIs(t, err, services.ErrNegativeTotal)
	assert.True(t, b.Total.IsZero())
	assert.True(t, b.Clamped)
}

func TestQuoteUnknownTier(t *testing.T) {
	p := services.NewPricer(services.DefaultShippingSchedule())
	_, err := p.Quote("drone", dec("10"), decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, services.ErrUnknownTier)
}

func TestRandomLuckyRange(t *testing.T) {
	lo, hi := dec("0.01"), dec("0.99")
	for i := 0; i < 500; i++ {
		v := services.RandomLucky()
		require.True(t, v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi), "got %s", v)
		require.Equal(t, int32(-2), v.Exponent())
	}
}

func TestSetScheduleCopiesAndSwaps(t *testing.T) {
	s := services.DefaultShippingSchedule()
	p := services.NewPricer(s)
	s[domain.ShippingExpress] = dec("999")
	cost, err := p.ShippingCost(domain.ShippingExpress)
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(cost), "caller's map must not leak in")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = p.ShippingCost(domain.ShippingOvernight)
			}
		}()
	}
	p.SetSchedule(services.ShippingSchedule{
		domain.ShippingStandard:  dec("40"),
		domain.ShippingExpress:   dec("120"),
		domain.ShippingOvernight: dec("250"),
	})
	wg.Wait()
	cost, err = p.ShippingCost(domain.ShippingOvernight)
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(cost))
}
