package matching

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Criterion identifies one piece of duplicate evidence.
type Criterion int

// Criteria are declared in evaluation order; reasons are reported in this order.
const (
	CriterionEmail Criterion = iota
	CriterionPhone
	CriterionAddress
	CriterionSKU
	CriterionName
)

// Fixed criterion weights. Name is corroborating evidence and can never reach FlagThreshold alone.
const (
	EmailPoints   = 50
	PhonePoints   = 50
	AddressPoints = 50
	SKUPoints     = 50
	NamePoints    = 20
)

var evaluationOrder = []Criterion{CriterionEmail, CriterionPhone, CriterionAddress, CriterionSKU, CriterionName}

// Points returns the fixed weight of the criterion.
func (c Criterion) Points() int {
	switch c {
	case CriterionEmail:
		return EmailPoints
	case CriterionPhone:
		return PhonePoints
	case CriterionAddress:
		return AddressPoints
	case CriterionSKU:
		return SKUPoints
	case CriterionName:
		return NamePoints
	default:
		return 0
	}
}

// Label is the human-readable reason shown to operators.
func (c Criterion) Label() string {
	switch c {
	case CriterionEmail:
		return "Same email"
	case CriterionPhone:
		return "Same phone"
	case CriterionAddress:
		return "Same address"
	case CriterionSKU:
		return "Same SKU"
	case CriterionName:
		return "Same name"
	default:
		return ""
	}
}

func (c Criterion) String() string {
	switch c {
	case CriterionEmail:
		return "email"
	case CriterionPhone:
		return "phone"
	case CriterionAddress:
		return "address"
	case CriterionSKU:
		return "sku"
	case CriterionName:
		return "name"
	default:
		return "unknown"
	}
}

// Profile is the normalized, comparable view of an order.
type Profile struct {
	OrderID   string
	ShopID    string
	CreatedAt time.Time
	Email     string
	Phone     string
	Name      string
	Address   *normalizers.NormalizedAddress
	SKUs      map[string]struct{}
}

// NewProfile normalizes every field of the order once so it can be compared against many candidates.
func NewProfile(o models.Order) Profile {
	return Profile{
		OrderID:   o.ID,
		ShopID:    o.ShopID,
		CreatedAt: o.CreatedAt,
		Email:     normalizers.Optional(o.CustomerEmail, normalizers.NormalizeEmail),
		Phone:     normalizers.Optional(o.CustomerPhone, normalizers.NormalizePhone),
		Name:      normalizers.Optional(o.CustomerName, normalizers.NormalizeName),
		Address:   normalizers.NormalizeAddress(o.ShippingAddress),
		SKUs:      o.LineItems.SKUs(),
	}
}

// MatchEmail returns EmailPoints when email matching is enabled and both emails are present and equal.
func MatchEmail(settings models.DetectionSettings, a, b Profile) int {
	if settings.MatchEmail && same(a.Email, b.Email) {
		return EmailPoints
	}
	return 0
}

// MatchPhone returns PhonePoints when phone matching is enabled and both phones are present and equal.
func MatchPhone(settings models.DetectionSettings, a, b Profile) int {
	if settings.MatchPhone && same(a.Phone, b.Phone) {
		return PhonePoints
	}
	return 0
}

// MatchAddress returns AddressPoints when address matching is enabled and the sensitivity rule holds.
func MatchAddress(settings models.DetectionSettings, a, b Profile) int {
	if settings.MatchAddress && AddressMatches(settings.AddressSensitivity, a.Address, b.Address) {
		return AddressPoints
	}
	return 0
}

// MatchSKU returns SKUPoints when SKU matching is enabled and the orders share at least one SKU.
func MatchSKU(settings models.DetectionSettings, a, b Profile) int {
	if !settings.MatchSKU {
		return 0
	}
	small, large := a.SKUs, b.SKUs
	if len(small) > len(large) {
		small, large = large, small
	}
	for sku := range small {
		if _, ok := large[sku]; ok {
			return SKUPoints
		}
	}
	return 0
}

// MatchName returns NamePoints when both names are present and equal. It is not gated by settings.
func MatchName(_ models.DetectionSettings, a, b Profile) int {
	if same(a.Name, b.Name) {
		return NamePoints
	}
	return 0
}

// AddressMatches applies the sensitivity tier. Tiers are nested: high ⊂ medium ⊂ low.
//
//	low:    address1 OR (city AND zip)
//	medium: address1 AND (city OR zip)
//	high:   address1 AND city AND zip
func AddressMatches(sensitivity models.AddressSensitivity, a, b *normalizers.NormalizedAddress) bool {
	if a == nil || b == nil {
		return false
	}

	street := same(a.Address1, b.Address1)
	city := same(a.City, b.City)
	zip := same(a.Zip, b.Zip)

	switch sensitivity {
	case models.AddressSensitivityLow:
		return street || (city && zip)
	case models.AddressSensitivityMedium:
		return street && (city || zip)
	case models.AddressSensitivityHigh:
		return street && city && zip
	default:
		return false
	}
}

type matcher func(models.DetectionSettings, Profile, Profile) int

func matcherFor(c Criterion) matcher {
	switch c {
	case CriterionEmail:
		return MatchEmail
	case CriterionPhone:
		return MatchPhone
	case CriterionAddress:
		return MatchAddress
	case CriterionSKU:
		return MatchSKU
	case CriterionName:
		return MatchName
	default:
		return func(models.DetectionSettings, Profile, Profile) int { return 0 }
	}
}

// same treats absent values as never equal.
func same(a, b string) bool {
	return a != "" && a == b
}
