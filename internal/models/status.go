package models

// Status is the serviceability label recorded for one provider and pincode.
type Status string

const (
	StatusServiceable    Status = "Serviceable"
	StatusNotServiceable Status = "Not Serviceable"
	StatusNoMatch        Status = "Invalid or No Match"
	StatusUnknown        Status = "Unknown"
	StatusUnconfirmed    Status = "Unconfirmed"
	StatusError          Status = "Error"
)

// AddressUnknown is recorded when a provider reports the pincode serviceable
// but the confirmed address could not be read.
const AddressUnknown = "Serviceable, but address unknown"

// Statuses lists every label in a stable order.
func Statuses() []Status {
	return []Status{
		StatusServiceable,
		StatusNotServiceable,
		StatusNoMatch,
		StatusUnknown,
		StatusUnconfirmed,
		StatusError,
	}
}

// Valid reports whether s is one of the known labels.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// CheckOutcome is what a single provider check yields. An empty Address means none.
type CheckOutcome struct {
	Status  Status
	Address string
}
