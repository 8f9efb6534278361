package validate

import (
	"regexp"
	"strconv"
	"strings"

	"leafline/internal/domain"
)

var (
	// Indian PIN: 6 digits, first digit non-zero
	rePincode = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	// +<country code> then 6-14 digits; spaces and dashes are stripped first
	rePhone  = regexp.MustCompile(`^\+[1-9][0-9]{0,3}[0-9]{6,14}$`)
	reEmail  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	rePlace  = regexp.MustCompile(`^[\p{L} .'-]{2,60}$`)
	rePerson = regexp.MustCompile(`^[\p{L} .'-]{2,80}$`)
	reCoupon = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)
)

const (
	MsgPincodeFormat  = "Enter a valid 6-digit pincode"
	MsgNotServiceable = "Pincode not serviceable"
)

func Pincode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePincode.MatchString(s)
}

// Phone normalizes a phone number with a country code. A bare 10 digit
// number is assumed to be Indian.
func Phone(s string) (string, bool) {
	s = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(s))
	if len(s) == 10 && !strings.HasPrefix(s, "+") {
		s = "+91" + s
	}
	return s, rePhone.MatchString(s)
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

func Qty(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return ClampQty(n)
}

// ClampQty keeps a requested quantity within 0..50 (0 means remove).
func ClampQty(n int) int {
	if n < 0 {
		return 0
	}
	if n > 50 {
		return 50
	}
	return n
}

// ID validates a simple resource identifier (product/variant/combo/address ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// OptionalID accepts the empty string.
func OptionalID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, reID.MatchString(s)
}

func FullName(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	return s, rePerson.MatchString(s)
}

func AddressLine(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, len(s) >= 5 && len(s) <= 200
}

func City(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePlace.MatchString(s)
}

func State(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePlace.MatchString(s)
}

// Label is free text; empty becomes "home".
func Label(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "home", true
	}
	return s, len(s) <= 20
}

func CouponCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reCoupon.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 40 {
		return "", false
	}
	return s, true
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}

// Address normalizes a in place and returns field errors keyed by JSON field
// name. An empty map means the address is valid.
func Address(a *domain.Address) map[string]string {
	errs := map[string]string{}
	var ok bool
	if a.FullName, ok = FullName(a.FullName); !ok {
		errs["full_name"] = "Enter the recipient's full name"
	}
	if a.Phone, ok = Phone(a.Phone); !ok {
		errs["phone"] = "Enter a valid phone number with country code"
	}
	if a.AddressLine, ok = AddressLine(a.AddressLine); !ok {
		errs["address_line"] = "Enter the house, street and area"
	}
	if a.Pincode, ok = Pincode(a.Pincode); !ok {
		errs["pincode"] = MsgPincodeFormat
	}
	if a.City, ok = City(a.City); !ok {
		errs["city"] = "Enter a valid city"
	}
	if a.State, ok = State(a.State); !ok {
		errs["state"] = "Enter a valid state"
	}
	if a.Label, ok = Label(a.Label); !ok {
		errs["label"] = "Label is too long"
	}
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = "India"
	}
	return errs
}
