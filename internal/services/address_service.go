package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/repos"
	"leafline/internal/validate"
)

// PincodeCache fronts the pincode table. A miss is (zero, false, nil).
type PincodeCache interface {
	Get(ctx context.Context, pincode string) (domain.PincodeInfo, bool, error)
	Set(ctx context.Context, info domain.PincodeInfo) error
}

type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (domain.GeoAddress, error)
}

// Browser geolocation failure codes.
const (
	GeoPermissionDenied    = 1
	GeoPositionUnavailable = 2
	GeoTimeout             = 3
)

// GeoErrorMessage returns the user-facing message for a geolocation failure code.
func GeoErrorMessage(code int) string {
	switch code {
	case GeoPermissionDenied:
		return "Location permission denied. Please allow location access or enter your address manually."
	case GeoPositionUnavailable:
		return "Location information is unavailable. Please enter your address manually."
	case GeoTimeout:
		return "Location request timed out. Please try again or enter your address manually."
	default:
		return "Unable to get your location. Please enter your address manually."
	}
}

// GeoError reports a geolocation failure the client ran into.
type GeoError struct {
	Code    int
	Message string
}

func (e *GeoError) Error() string { return fmt.Sprintf("geolocation failed (%d): %s", e.Code, e.Message) }

type GeoRequest struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	ErrorCode int      `json:"error_code"`
}

type GeoResult struct {
	Address     domain.GeoAddress `json:"address"`
	AddressLine string            `json:"address_line"`
	Fallback    bool              `json:"fallback"`
}

// AddressForm is the state of an address being edited: the values and
// the field errors shown next to them.
type AddressForm struct {
	Address domain.Address    `json:"address"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type AddressService struct {
	Addresses *repos.AddressRepo
	Pincodes  *repos.PincodeRepo
	Cache     PincodeCache    // optional
	Geocoder  ReverseGeocoder // optional
	Now       func() time.Time
}

func NewAddressService(addrs *repos.AddressRepo, pins *repos.PincodeRepo) *AddressService {
	return &AddressService{Addresses: addrs, Pincodes: pins, Now: time.Now}
}

// LookupPincode reports whether pincode is serviceable. Cache failures fall
// through to the table.
func (s *AddressService) LookupPincode(ctx context.Context, pincode string) (domain.PincodeInfo, bool, error) {
	pincode, ok := validate.Pincode(pincode)
	if !ok {
		return domain.PincodeInfo{}, false, invalid("pincode", validate.MsgPincodeFormat)
	}
	if s.Cache != nil {
		info, hit, err := s.Cache.Get(ctx, pincode)
		if err != nil {
			applog.Error(nil, "pincode.cache_get", err, map[string]any{"pincode": pincode})
		} else if hit {
			applog.Debug(nil, "pincode.cache_hit", map[string]any{"pincode": pincode})
			return info, true, nil
		}
	}
	info, err := s.Pincodes.Lookup(ctx, pincode)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PincodeInfo{}, false, nil
	}
	if err != nil {
		return domain.PincodeInfo{}, false, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, info); err != nil {
			applog.Error(nil, "pincode.cache_set", err, map[string]any{"pincode": pincode})
		}
	}
	return info, true, nil
}

// ApplyPincode autofills the form from its pincode. A serviceable pincode
// fills city, state and country and clears the pincode error; an unknown one
// sets the "not serviceable" error and leaves the rest untouched. Incomplete
// pincodes are ignored.
func (s *AddressService) ApplyPincode(ctx context.Context, f *AddressForm) error {
	pin, ok := validate.Pincode(f.Address.Pincode)
	if !ok {
		return nil
	}
	if f.Errors == nil {
		f.Errors = map[string]string{}
	}
	info, found, err := s.LookupPincode(ctx, pin)
	if err != nil {
		return err
	}
	if !found {
		f.Errors["pincode"] = validate.MsgNotServiceable
		return nil
	}
	f.Address.Pincode = info.Pincode
	f.Address.City = info.City
	f.Address.State = info.State
	f.Address.Country = info.Country
	delete(f.Errors, "pincode")
	delete(f.Errors, "city")
	delete(f.Errors, "state")
	return nil
}

// Geolocate turns a browser position into address fields. Client-side
// failures come back as *GeoError; a geocoder failure falls back to the raw
// coordinates.
func (s *AddressService) Geolocate(ctx context.Context, req GeoRequest) (GeoResult, error) {
	if req.ErrorCode != 0 || req.Lat == nil || req.Lon == nil {
		code := req.ErrorCode
		if code == 0 {
			code = GeoPositionUnavailable
		}
		return GeoResult{}, &GeoError{Code: code, Message: GeoErrorMessage(code)}
	}
	lat, lon := *req.Lat, *req.Lon
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return GeoResult{}, &GeoError{Code: GeoPositionUnavailable, Message: GeoErrorMessage(GeoPositionUnavailable)}
	}

	fallback := GeoResult{
		Address:     domain.GeoAddress{Lat: lat, Lon: lon},
		AddressLine: fmt.Sprintf("%.6f, %.6f", lat, lon),
		Fallback:    true,
	}
	if s.Geocoder == nil {
		return fallback, nil
	}
	ga, err := s.Geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		applog.Error(nil, "geolocate.reverse", err, map[string]any{"lat": lat, "lon": lon})
		return fallback, nil
	}
	ga.Lat, ga.Lon = lat, lon

	var parts []string
	for _, p := range []string{ga.HouseNumber, ga.Road, ga.Suburb} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	res := GeoResult{Address: ga, AddressLine: strings.Join(parts, ", ")}
	if res.AddressLine == "" && ga.City == "" && ga.State == "" && ga.Postcode == "" {
		return fallback, nil
	}
	return res, nil
}

// List degrades to an empty list when the store fails.
func (s *AddressService) List(ctx context.Context, userID string) []domain.Address {
	if userID == "" {
		return []domain.Address{}
	}
	out, err := s.Addresses.ListByUser(ctx, userID)
	if err != nil {
		applog.Error(nil, "address.list", err, map[string]any{"user_id": userID})
		return []domain.Address{}
	}
	return out
}

func (s *AddressService) Get(ctx context.Context, userID, id string) (domain.Address, error) {
	if userID == "" {
		return domain.Address{}, ErrLoginRequired
	}
	a, err := s.Addresses.Get(ctx, userID, id)
	return a, notFound(err, ErrAddressNotFound)
}

// Save validates and stores a new address. An existing address with the same
// address line and pincode is returned instead of inserting a duplicate. The
// user's first address always becomes the default.
func (s *AddressService) Save(ctx context.Context, userID string, a domain.Address, makeDefault bool) (domain.Address, bool, error) {
	if userID == "" {
		return domain.Address{}, false, ErrLoginRequired
	}
	if errs := validate.Address(&a); len(errs) > 0 {
		return domain.Address{}, false, &ValidationError{Fields: errs}
	}

	dup, err := s.Addresses.FindDuplicate(ctx, userID, a.AddressLine, a.Pincode)
	switch {
	case err == nil:
		if makeDefault && !dup.IsDefault {
			if _, err := s.Addresses.SetDefault(ctx, userID, dup.ID); err != nil {
				return domain.Address{}, false, err
			}
			dup.IsDefault = true
		}
		return dup, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Address{}, false, err
	}

	n, err := s.Addresses.Count(ctx, userID)
	if err != nil {
		return domain.Address{}, false, err
	}
	a.ID = uuid.NewString()
	a.UserID = userID
	a.IsDefault = false
	a.CreatedAt = s.Now().UTC().Format(repos.TimeLayout)
	if err := s.Addresses.Insert(ctx, a); err != nil {
		return domain.Address{}, false, err
	}
	if n == 0 || makeDefault {
		if _, err := s.Addresses.SetDefault(ctx, userID, a.ID); err != nil {
			return domain.Address{}, false, err
		}
		a.IsDefault = true
	}
	return a, true, nil
}

func (s *AddressService) Update(ctx context.Context, userID string, a domain.Address) (domain.Address, error) {
	if userID == "" {
		return domain.Address{}, ErrLoginRequired
	}
	if errs := validate.Address(&a); len(errs) > 0 {
		return domain.Address{}, &ValidationError{Fields: errs}
	}
	a.UserID = userID
	ok, err := s.Addresses.Update(ctx, a)
	if err != nil {
		return domain.Address{}, err
	}
	if !ok {
		return domain.Address{}, ErrAddressNotFound
	}
	return s.Get(ctx, userID, a.ID)
}

// Delete removes an address. When it was the default, the oldest remaining
// address takes over.
func (s *AddressService) Delete(ctx context.Context, userID, id string) error {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.Addresses.Delete(ctx, userID, id); err != nil {
		return err
	}
	if a.IsDefault {
		if err := s.Addresses.PromoteOldest(ctx, userID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return nil
}

func (s *AddressService) SetDefault(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrLoginRequired
	}
	ok, err := s.Addresses.SetDefault(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddressNotFound
	}
	return nil
}
