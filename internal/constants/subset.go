package constants

// Subset names a predefined group of runs that mean curves can be restricted to.
type Subset string

const (
	// SubsetAll selects every run.
	SubsetAll Subset = "all"

	// SubsetAbsorbed selects runs that reached absorption.
	SubsetAbsorbed Subset = "absorbed"

	// SubsetUnabsorbed selects runs that never absorbed.
	SubsetUnabsorbed Subset = "unabsorbed"
)

// Valid returns true if the subset is a recognized value.
func (s Subset) Valid() bool {
	switch s {
	case SubsetAll, SubsetAbsorbed, SubsetUnabsorbed:
		return true
	}
	return false
}

// String returns the string representation of the subset.
func (s Subset) String() string {
	return string(s)
}

// Subsets lists the predefined subsets in report order.
func Subsets() []Subset {
	return []Subset{SubsetAll, SubsetAbsorbed, SubsetUnabsorbed}
}
