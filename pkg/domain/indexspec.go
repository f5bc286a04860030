package domain

import "fmt"

// IndexSpec describes one index a collection's catalog entry declares.
// It is the parsed form of a system.indexes-style descriptor, consumed
// by the multi-index builder during a rebuild.
type IndexSpec struct {
	Name   string
	Fields []string
	Unique bool
}

// ParseIndexSpecs parses the raw "indexes" slice stored alongside a
// catalog entry. Each element is expected to be a map with "name",
// "fields" (or a single "field"), and an optional "unique" flag.
func ParseIndexSpecs(raw []interface{}) ([]IndexSpec, error) {
	specs := make([]IndexSpec, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid index descriptor at position %d: expected object, got %T", i, entry)
		}

		spec := IndexSpec{}
		if name, ok := m["name"].(string); ok {
			spec.Name = name
		}

		switch fields := m["fields"].(type) {
		case []interface{}:
			for _, f := range fields {
				s, ok := f.(string)
				if !ok {
					return nil, fmt.Errorf("invalid index descriptor %q: field entries must be strings", spec.Name)
				}
				spec.Fields = append(spec.Fields, s)
			}
		case nil:
			if field, ok := m["field"].(string); ok {
				spec.Fields = []string{field}
			}
		default:
			return nil, fmt.Errorf("invalid index descriptor %q: fields must be a list", spec.Name)
		}

		if len(spec.Fields) == 0 {
			return nil, fmt.Errorf("invalid index descriptor %q: at least one field is required", spec.Name)
		}
		if spec.Name == "" {
			spec.Name = defaultIndexName(spec.Fields)
		}
		if unique, ok := m["unique"].(bool); ok {
			spec.Unique = unique
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

func defaultIndexName(fields []string) string {
	name := ""
	for _, f := range fields {
		if name != "" {
			name += "_"
		}
		name += f + "_1"
	}
	return name
}
