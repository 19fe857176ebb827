package matching

import "github.com/titanbuild/vistalink/internal/domain"

// Profile is the per-kind comparator configuration. Weights sum to 1.0;
// missing fields are renormalized away at scoring time.
type Profile struct {
	Kind        domain.Kind
	Comparators []Comparator
}

// strongFieldThreshold marks a component score high enough for its field to
// be reported in MatchedFields.
const strongFieldThreshold = 0.85

var profiles = map[domain.Kind]Profile{
	domain.KindContracts: {
		Kind: domain.KindContracts,
		Comparators: []Comparator{
			{Field: "number", Weight: 0.35, Compare: compareNumber},
			{Field: "name", Weight: 0.40, Compare: compareName},
			{Field: "amount", Weight: 0.15, Compare: compareAmount},
			{Field: "start_date", Weight: 0.10, Compare: compareStartDate},
		},
	},
	domain.KindWorkOrders: {
		Kind: domain.KindWorkOrders,
		Comparators: []Comparator{
			{Field: "number", Weight: 0.35, Compare: compareNumber},
			{Field: "name", Weight: 0.40, Compare: compareName},
			{Field: "amount", Weight: 0.15, Compare: compareAmount},
			{Field: "location", Weight: 0.10, Compare: compareLocation},
		},
	},
	domain.KindEmployees: {
		Kind: domain.KindEmployees,
		Comparators: []Comparator{
			{Field: "number", Weight: 0.30, Compare: compareNumber},
			{Field: "name", Weight: 0.45, Compare: compareName},
			{Field: "email", Weight: 0.15, Compare: compareEmail},
			{Field: "phone", Weight: 0.10, Compare: comparePhone},
		},
	},
	domain.KindCustomers: {
		Kind: domain.KindCustomers,
		Comparators: []Comparator{
			{Field: "number", Weight: 0.15, Compare: compareNumber},
			{Field: "name", Weight: 0.55, Compare: compareName},
			{Field: "email", Weight: 0.15, Compare: compareEmail},
			{Field: "phone", Weight: 0.15, Compare: comparePhone},
		},
	},
	domain.KindVendors: {
		Kind: domain.KindVendors,
		Comparators: []Comparator{
			{Field: "number", Weight: 0.15, Compare: compareNumber},
			{Field: "name", Weight: 0.55, Compare: compareName},
			{Field: "email", Weight: 0.15, Compare: compareEmail},
			{Field: "phone", Weight: 0.15, Compare: comparePhone},
		},
	},
	domain.KindDepartments: {
		Kind: domain.KindDepartments,
		Comparators: []Comparator{
			{Field: "number", Weight: 0.40, Compare: compareNumber},
			{Field: "name", Weight: 0.60, Compare: compareName},
		},
	},
}

// ProfileFor returns the comparator profile for a kind.
func ProfileFor(kind domain.Kind) Profile {
	return profiles[kind]
}
