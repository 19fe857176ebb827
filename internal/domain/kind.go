package domain

import "fmt"

// Kind identifies the category of a Vista export record. The string values
// double as the URL segment used by the reconciliation API.
type Kind string

const (
	KindContracts   Kind = "contracts"
	KindWorkOrders  Kind = "work-orders"
	KindEmployees   Kind = "employees"
	KindCustomers   Kind = "customers"
	KindVendors     Kind = "vendors"
	KindDepartments Kind = "departments"
)

// TitanKind identifies the native entity table a Vista kind reconciles
// against. Contracts and work orders both resolve to projects.
type TitanKind string

const (
	TitanKindProjects    TitanKind = "projects"
	TitanKindEmployees   TitanKind = "employees"
	TitanKindCustomers   TitanKind = "customers"
	TitanKindVendors     TitanKind = "vendors"
	TitanKindDepartments TitanKind = "departments"
)

// AllKinds lists every Vista kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindContracts,
		KindWorkOrders,
		KindEmployees,
		KindCustomers,
		KindVendors,
		KindDepartments,
	}
}

// ParseKind validates a kind taken from a URL segment or sheet name.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindContracts, KindWorkOrders, KindEmployees, KindCustomers, KindVendors, KindDepartments:
		return Kind(raw), nil
	}
	return "", NewValidationError("unknown kind %q", raw)
}

// TitanKind returns the native entity kind this Vista kind links to.
func (k Kind) TitanKind() TitanKind {
	switch k {
	case KindContracts, KindWorkOrders:
		return TitanKindProjects
	case KindEmployees:
		return TitanKindEmployees
	case KindCustomers:
		return TitanKindCustomers
	case KindVendors:
		return TitanKindVendors
	case KindDepartments:
		return TitanKindDepartments
	}
	return ""
}

// VistaKinds lists every Vista kind that reconciles against this titan kind.
// Projects are shared: both contracts and work orders link to them, so orphan
// checks must consider links from all sibling kinds.
func (k TitanKind) VistaKinds() []Kind {
	var kinds []Kind
	for _, kind := range AllKinds() {
		if kind.TitanKind() == k {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// OneToOne reports whether the primary link for this kind consumes its titan
// record exclusively. Contracts, work orders and employees map one Vista row
// to one titan row; customers, vendors and departments tolerate duplicate ERP
// rows pointing at the same titan record.
func (k Kind) OneToOne() bool {
	switch k {
	case KindContracts, KindWorkOrders, KindEmployees:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

func (k TitanKind) String() string { return string(k) }

// Validate returns an error for zero or unknown kinds.
func (k Kind) Validate() error {
	if _, err := ParseKind(string(k)); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}
	return nil
}
