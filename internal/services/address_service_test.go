package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafline/internal/domain"
	"leafline/internal/repos"
	"leafline/internal/services"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.PincodeInfo
	failGet bool
	gets    int
}

func (c *memCache) Get(ctx context.Context, pin string) (domain.PincodeInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet {
		return domain.PincodeInfo{}, false, errors.New("redis: connection refused")
	}
	info, ok := c.entries[pin]
	return info, ok, nil
}

func (c *memCache) Set(ctx context.Context, info domain.PincodeInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]domain.PincodeInfo{}
	}
	c.entries[info.Pincode] = info
	return nil
}

type stubGeocoder struct {
	addr domain.GeoAddress
	err  error
}

func (g stubGeocoder) Reverse(ctx context.Context, lat, lon float64) (domain.GeoAddress, error) {
	return g.addr, g.err
}

func newAddressService(t *testing.T) *services.AddressService {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := services.NewAddressService(repos.NewAddressRepo(db), repos.NewPincodeRepo(db))
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func TestApplyPincodeFillsCityAndState(t *testing.T) {
	s := newAddressService(t)
	f := services.AddressForm{
		Address: domain.Address{Pincode: "400001"},
		Errors:  map[string]string{"pincode": "Pincode not serviceable", "city": "Enter a valid city"},
	}
	require.NoError(t, s.ApplyPincode(context.Background(), &f))
	assert.Equal(t, "Mumbai", f.Address.City)
	assert.Equal(t, "Maharashtra", f.Address.State)
	assert.Equal(t, "India", f.Address.Country)
	assert.NotContains(t, f.Errors, "pincode")
	assert.NotContains(t, f.Errors, "city")
}

func TestApplyPincodeUnknownLeavesFields(t *testing.T) {
	s := newAddressService(t)
	f := services.AddressForm{Address: domain.Address{Pincode: "999999", City: "Somewhere", State: "Elsewhere"}}
	require.NoError(t, s.ApplyPincode(context.Background(), &f))
	assert.Equal(t, "Pincode not serviceable", f.Errors["pincode"])
	assert.Equal(t, "Somewhere", f.Address.City)
	assert.Equal(t, "Elsewhere", f.Address.State)
}

func TestApplyPincodeIgnoresPartialInput(t *testing.T) {
	s := newAddressService(t)
	f := services.AddressForm{Address: domain.Address{Pincode: "4000"}}
	require.NoError(t, s.ApplyPincode(context.Background(), &f))
	assert.Empty(t, f.Errors)
	assert.Empty(t, f.Address.City)
}

func TestLookupPincodeUsesCache(t *testing.T) {
	s := newAddressService(t)
	c := &memCache{}
	s.Cache = c
	ctx := context.Background()

	info, ok, err := s.LookupPincode(ctx, "560001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bengaluru", info.City)
	assert.Contains(t, c.entries, "560001")

	c.entries["560001"] = domain.PincodeInfo{Pincode: "560001", City: "Cached", State: "Karnataka", Country: "India"}
	info, ok, err = s.LookupPincode(ctx, "560001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cached", info.City)

	c.failGet = true
	info, ok, err = s.LookupPincode(ctx, "110001")
	require.NoError(t, err, "cache failures fall through to the table")
	require.True(t, ok)
	assert.Equal(t, "New Delhi", info.City)

	_, _, err = s.LookupPincode(ctx, "01234")
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Enter a valid 6-digit pincode", verr.Fields["pincode"])
}

func TestGeolocate(t *testing.T) {
	s := newAddressService(t)
	ctx := context.Background()
	lat, lon := 18.9322, 72.8264

	_, err := s.Geolocate(ctx, services.GeoRequest{ErrorCode: services.GeoPermissionDenied})
	var gerr *services.GeoError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, services.GeoPermissionDenied, gerr.Code)
	assert.Contains(t, gerr.Message, "permission denied")

	_, err = s.Geolocate(ctx, services.GeoRequest{ErrorCode: services.GeoTimeout})
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Message, "timed out")

	s.Geocoder = stubGeocoder{addr: domain.GeoAddress{HouseNumber: "12", Road: "Marine Drive", Suburb: "Churchgate", City: "Mumbai", State: "Maharashtra", Postcode: "400020"}}
	res, err := s.Geolocate(ctx, services.GeoRequest{Lat: &lat, Lon: &lon})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "12, Marine Drive, Churchgate", res.AddressLine)
	assert.Equal(t, "Mumbai", res.Address.City)

	s.Geocoder = stubGeocoder{err: errors.New("503")}
	res, err = s.Geolocate(ctx, services.GeoRequest{Lat: &lat, Lon: &lon})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, "18.932200, 72.826400", res.AddressLine)
}

func addr(line string) domain.Address {
	a := *mumbai()
	a.AddressLine = line
	return a
}

func TestSaveAddressDefaultsAndDuplicates(t *testing.T) {
	s := newAddressService(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, "", addr("1 Colaba Causeway"), false)
	assert.ErrorIs(t, err, services.ErrLoginRequired)

	first, created, err := s.Save(ctx, "u-asha", addr("1 Colaba Causeway"), false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.IsDefault, "first address becomes default")

	second, created, err := s.Save(ctx, "u-asha", addr("2 Fort Road"), false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, second.IsDefault)

	dup, created, err := s.Save(ctx, "u-asha", addr("1 Colaba Causeway"), false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)

	require.NoError(t, s.SetDefault(ctx, "u-asha", second.ID))
	list := s.List(ctx, "u-asha")
	require.Len(t, list, 2)
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
			assert.Equal(t, second.ID, a.ID)
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, second.ID, list[0].ID, "default is listed first")

	assert.ErrorIs(t, s.SetDefault(ctx, "u-ravi", second.ID), services.ErrAddressNotFound)
	_, err = s.Get(ctx, "u-ravi", first.ID)
	assert.ErrorIs(t, err, services.ErrAddressNotFound)
}

func TestSaveAddressValidation(t *testing.T) {
	s := newAddressService(t)
	bad := domain.Address{FullName: "A", Phone: "123", AddressLine: "x", Pincode: "0123", City: "1", State: ""}
	_, _, err := s.Save(context.Background(), "u-asha", bad, false)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, k := range []string{"full_name", "phone", "address_line", "pincode", "city", "state"} {
		assert.Contains(t, verr.Fields, k)
	}
}

func TestDeleteDefaultPromotesOldest(t *testing.T) {
	s := newAddressService(t)
	ctx := context.Background()
	a, _, err := s.Save(ctx, "u-asha", addr("1 Colaba Causeway"), false)
	require.NoError(t, err)
	b, _, err := s.Save(ctx, "u-asha", addr("2 Fort Road"), false)
	require.NoError(t, err)
	c, _, err := s.Save(ctx, "u-asha", addr("3 Nariman Point"), true)
	require.NoError(t, err)
	require.True(t, c.IsDefault)

	require.NoError(t, s.Delete(ctx, "u-asha", c.ID))
	got, err := s.Get(ctx, "u-asha", a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	got, err = s.Get(ctx, "u-asha", b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	assert.ErrorIs(t, s.Delete(ctx, "u-asha", c.ID), services.ErrAddressNotFound)
}

func TestUpdateAddress(t *testing.T) {
	s := newAddressService(t)
	ctx := context.Background()
	a, _, err := s.Save(ctx, "u-asha", addr("1 Colaba Causeway"), false)
	require.NoError(t, err)

	a.Label = "Office"
	a.AddressLine = "1 Colaba Causeway, 2nd floor"
	out, err := s.Update(ctx, "u-asha", a)
	require.NoError(t, err)
	assert.Equal(t, "office", out.Label)
	assert.Equal(t, "1 Colaba Causeway, 2nd floor", out.AddressLine)
	assert.True(t, out.IsDefault)

	a.ID = "nope"
	_, err = s.Update(ctx, "u-asha", a)
	assert.ErrorIs(t, err, services.ErrAddressNotFound)
}
