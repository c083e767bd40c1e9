package models

// PincodeRecord is a validated 6-digit postal code queued for a serviceability check.
type PincodeRecord struct {
	Value string // Value is exactly six ASCII digits.
}

// String returns the pincode value.
func (p PincodeRecord) String() string {
	return p.Value
}

// InvalidRecord is an input candidate that failed pincode validation.
type InvalidRecord struct {
	Raw string // Raw is the trimmed candidate as read from the input file.
}
