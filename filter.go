package leadscout

import "strings"

// FilterKey is a metadata attribute retrieval can filter on. The set is
// closed: only the package-level values below exist, and the zero value is
// invalid.
type FilterKey struct {
	name string
}

// FilterKey values.
var (
	FilterDomain   = FilterKey{name: "domain"}
	FilterBrand    = FilterKey{name: "brand"}
	FilterCategory = FilterKey{name: "category"}
	FilterCompany  = FilterKey{name: "company"}
)

// FilterKeys returns every valid filter key.
func FilterKeys() []FilterKey {
	return []FilterKey{FilterDomain, FilterBrand, FilterCategory, FilterCompany}
}

// ParseFilterKey returns the key with the given name.
func ParseFilterKey(s string) (FilterKey, error) {
	for _, k := range FilterKeys() {
		if k.name == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return FilterKey{}, Errorf(EINVALID, "unknown filter key %q", s)
}

// String returns the key name.
func (k FilterKey) String() string { return k.name }

// IsZero reports whether k is the invalid zero key.
func (k FilterKey) IsZero() bool { return k.name == "" }

// Get returns the metadata value the key refers to.
func (k FilterKey) Get(md ChunkMetadata) string {
	switch k {
	case FilterDomain:
		return md.Domain
	case FilterBrand:
		return md.Brand
	case FilterCategory:
		return md.Category
	case FilterCompany:
		return md.Company
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (k FilterKey) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return nil, Errorf(EINVALID, "empty filter key")
	}
	return []byte(k.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FilterKey) UnmarshalText(b []byte) error {
	parsed, err := ParseFilterKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Filter restricts retrieval to chunks whose metadata matches Value.
type Filter struct {
	Key   FilterKey `json:"key"`
	Value string    `json:"value"`
}

// Validate returns an error if the filter has no key or no value.
func (f Filter) Validate() error {
	if f.Key.IsZero() {
		return Errorf(EINVALID, "filter key required")
	}
	if f.Value == "" {
		return Errorf(EINVALID, "filter %s requires a value", f.Key)
	}
	return nil
}

// Match reports whether metadata satisfies the filter. Comparison is
// case-insensitive.
func (f Filter) Match(md ChunkMetadata) bool {
	return strings.EqualFold(f.Key.Get(md), f.Value)
}

// ParseFilters parses "key=value" pairs.
func ParseFilters(pairs []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, Errorf(EINVALID, "filter %q must be key=value", p)
		}
		k, err := ParseFilterKey(key)
		if err != nil {
			return nil, err
		}
		f := Filter{Key: k, Value: strings.TrimSpace(value)}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}
