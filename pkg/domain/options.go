package domain

import "fmt"

// CollectionOptions is the parsed form of a catalog entry's "options"
// sub-document. Re-creating a collection with these options must accept
// the same documents the source collection did, so unknown keys are kept
// verbatim in Extra rather than dropped.
type CollectionOptions struct {
	Capped    bool
	SizeBytes int64
	MaxDocs   int64
	Extra     map[string]interface{}
}

// ParseCollectionOptions parses a raw options sub-document. A nil map
// yields the zero-value options (the engine's defaults). Unknown fields
// are round-tripped through Extra.
func ParseCollectionOptions(raw map[string]interface{}) (CollectionOptions, error) {
	opts := CollectionOptions{Extra: make(map[string]interface{})}
	if raw == nil {
		return opts, nil
	}

	for key, value := range raw {
		switch key {
		case "capped":
			b, ok := value.(bool)
			if !ok {
				return CollectionOptions{}, fmt.Errorf("invalid options: field %q must be bool, got %T", key, value)
			}
			opts.Capped = b
		case "size":
			n, ok := toInt64(value)
			if !ok {
				return CollectionOptions{}, fmt.Errorf("invalid options: field %q must be numeric, got %T", key, value)
			}
			opts.SizeBytes = n
		case "max":
			n, ok := toInt64(value)
			if !ok {
				return CollectionOptions{}, fmt.Errorf("invalid options: field %q must be numeric, got %T", key, value)
			}
			opts.MaxDocs = n
		default:
			opts.Extra[key] = value
		}
	}

	if opts.Capped && opts.SizeBytes <= 0 {
		return CollectionOptions{}, fmt.Errorf("invalid options: capped collection requires a positive size")
	}

	return opts, nil
}

// ToMap renders the options back into a sub-document, the form the
// namespace catalog stores and the "options" field of a
// system.namespaces entry exposes.
func (o CollectionOptions) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(o.Extra)+3)
	for k, v := range o.Extra {
		m[k] = v
	}
	if o.Capped {
		m["capped"] = true
		m["size"] = o.SizeBytes
	}
	if o.MaxDocs > 0 {
		m["max"] = o.MaxDocs
	}
	return m
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}
