package matching

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

var sensitivities = []models.AddressSensitivity{
	models.AddressSensitivityLow,
	models.AddressSensitivityMedium,
	models.AddressSensitivityHigh,
}

func settingsFrom(email, phone, address, sku bool, sensitivity int) models.DetectionSettings {
	s := models.DefaultSettings("shop-1")
	s.MatchEmail = email
	s.MatchPhone = phone
	s.MatchAddress = address
	s.MatchSKU = sku
	s.AddressSensitivity = sensitivities[sensitivity]
	return s
}

func orderFrom(id, email, name, address1, city string, skus []string) models.Order {
	return newOrder(id,
		withEmail(email),
		withName(name),
		withAddress(address1, city, "97477"),
		withSKUs(skus...),
	)
}

func confidence(a, b models.Order, settings models.DetectionSettings) int {
	score, ok := NewScorer().Score(NewProfile(a), NewProfile(b), settings)
	if !ok {
		return 0
	}
	return score.Confidence
}

func TestProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	word := gen.RegexMatch(`[a-z]{1,8}`)
	email := gen.RegexMatch(`[a-z]{1,8}@[a-z]{1,6}\.com`)
	skus := gen.SliceOfN(4, gen.RegexMatch(`[A-D]`))

	properties.Property("identical email contributes exactly 50", prop.ForAll(
		func(e, nameA, nameB string, skusA, skusB []string) bool {
			s := models.DefaultSettings("shop-1")
			a := NewProfile(orderFrom("a", e, nameA, "1 main", "x", skusA))
			b := NewProfile(orderFrom("b", strings.ToUpper(e)+" ", nameB, "2 elm", "y", skusB))
			return MatchEmail(s, a, b) == EmailPoints
		},
		email, word, word, skus, skus,
	))

	properties.Property("confidence ignores line item order", prop.ForAll(
		func(e1, e2 string, skusA, skusB []string) bool {
			s := models.DefaultSettings("shop-1")
			a := orderFrom("a", e1, "jane", "1 main", "x", skusA)
			b := orderFrom("b", e2, "jane", "1 main", "x", skusB)

			reversed := a
			reversed.LineItems = make(models.LineItems, len(a.LineItems))
			for i, item := range a.LineItems {
				reversed.LineItems[len(a.LineItems)-1-i] = item
			}
			return confidence(a, b, s) == confidence(reversed, b, s)
		},
		email, email, skus, skus,
	))

	properties.Property("confidence ignores case and whitespace", prop.ForAll(
		func(e, name, street, city string) bool {
			s := models.DefaultSettings("shop-1")
			a := orderFrom("a", e, name, street, city, nil)
			b := orderFrom("b", e, name, street, city, nil)
			shouted := orderFrom("c", " "+strings.ToUpper(e), strings.ToUpper(name)+"  ", "  "+strings.ToUpper(street), strings.ToUpper(city)+"\t", nil)
			return confidence(a, b, s) == confidence(a, shouted, s)
		},
		email, word, word, word,
	))

	properties.Property("address tiers are nested", prop.ForAll(
		func(street, city, zip bool) bool {
			a := &normalizers.NormalizedAddress{Address1: "1 main st", City: "springfield", Zip: "97477"}
			b := &normalizers.NormalizedAddress{Address1: "9 elm st", City: "eugene", Zip: "00000"}
			if street {
				b.Address1 = a.Address1
			}
			if city {
				b.City = a.City
			}
			if zip {
				b.Zip = a.Zip
			}
			low := AddressMatches(models.AddressSensitivityLow, a, b)
			medium := AddressMatches(models.AddressSensitivityMedium, a, b)
			high := AddressMatches(models.AddressSensitivityHigh, a, b)
			return (!high || medium) && (!medium || low)
		},
		gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.Property("disabling a criterion never increases confidence", prop.ForAll(
		func(email, phone, address, sku bool, sensitivity, disable int, skusA, skusB []string) bool {
			a := orderFrom("a", "jane@example.com", "jane", "1 main", "x", skusA)
			b := orderFrom("b", "jane@example.com", "jane", "1 main", "x", skusB)

			enabled := settingsFrom(email, phone, address, sku, sensitivity)
			reduced := enabled
			switch disable {
			case 0:
				reduced.MatchEmail = false
			case 1:
				reduced.MatchPhone = false
			case 2:
				reduced.MatchAddress = false
			default:
				reduced.MatchSKU = false
			}
			return confidence(a, b, reduced) <= confidence(a, b, enabled)
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.IntRange(0, 2), gen.IntRange(0, 3), skus, skus,
	))

	properties.Property("confidence stays within 0..100", prop.ForAll(
		func(email, phone, address, sku bool, sensitivity int, skusA, skusB []string) bool {
			a := orderFrom("a", "jane@example.com", "jane", "1 main", "x", skusA)
			b := orderFrom("b", "jane@example.com", "jane", "1 main", "x", skusB)
			c := confidence(a, b, settingsFrom(email, phone, address, sku, sensitivity))
			return c >= 0 && c <= MaxConfidence
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.IntRange(0, 2), skus, skus,
	))

	properties.TestingRun(t)
}
