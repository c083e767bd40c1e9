package models

// ServiceabilityResult is the merged outcome of all configured providers for one pincode.
type ServiceabilityResult struct {
	Pincode   PincodeRecord     // Pincode is the checked record.
	Address   string            // Address is the merged address, empty when none was found.
	Providers []string          // Providers holds provider names in configured order.
	Statuses  map[string]Status // Statuses maps provider name to its label.
}

// NewServiceabilityResult creates an empty result for record with room for the given providers.
func NewServiceabilityResult(record PincodeRecord, providers []string) ServiceabilityResult {
	names := make([]string, len(providers))
	copy(names, providers)

	return ServiceabilityResult{
		Pincode:   record,
		Providers: names,
		Statuses:  make(map[string]Status, len(providers)),
	}
}

// Status returns the label recorded for provider, or StatusUnknown when none was recorded.
func (r ServiceabilityResult) Status(provider string) Status {
	if s, ok := r.Statuses[provider]; ok {
		return s
	}
	return StatusUnknown
}

// MergeAddress picks the address for a pincode from per-provider candidates given in
// provider order: the first real address wins, the AddressUnknown sentinel is used only
// when no provider returned a real one.
func MergeAddress(candidates []string) string {
	sentinel := false
	for _, addr := range candidates {
		switch addr {
		case "":
			continue
		case AddressUnknown:
			sentinel = true
		default:
			return addr
		}
	}
	if sentinel {
		return AddressUnknown
	}
	return ""
}
