package models

// Vendor identifies a storefront acting as a price source.
type Vendor string

const (
	VendorSteam         Vendor = "steam"
	VendorInstantGaming Vendor = "instant_gaming"
)

// Valid reports whether v is a known storefront.
func (v Vendor) Valid() bool {
	switch v {
	case VendorSteam, VendorInstantGaming:
		return true
	}
	return false
}

// Currency is an ISO 4217 code such as EUR or USD.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)
