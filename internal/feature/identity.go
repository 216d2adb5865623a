package feature

import "strconv"

// IDKeys are the identifier property keys in resolution priority order.
var IDKeys = []string{"id", "gml_id", "fid", "gid", "objectid"}

// ResolveID derives the stable identifier of a raw feature. The first
// present candidate in IDKeys wins; the document-level id stands in for a
// missing "id" property. Without any candidate the positional fallback
// "feature_<index>" is used. ResolveID is pure.
func ResolveID(f RawFeature, index int) string {
	for _, key := range IDKeys {
		if v, ok := candidate(f, key); ok {
			return v
		}
	}
	return PositionalID(index)
}

// PositionalID is the fallback identifier for the feature at index.
func PositionalID(index int) string {
	return "feature_" + strconv.Itoa(index)
}

// Aliases returns every identifier value present on f, in IDKeys order,
// without duplicates.
func Aliases(f RawFeature) []string {
	var out []string
	seen := make(map[string]struct{}, len(IDKeys))
	for _, key := range IDKeys {
		v, ok := candidate(f, key)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func candidate(f RawFeature, key string) (string, bool) {
	v, ok := f.Properties.Get(key)
	if (!ok || v.IsNull()) && key == "id" {
		v, ok = f.DocumentID, true
	}
	if !ok || v.IsNull() {
		return "", false
	}
	s := v.Text()
	if s == "" {
		return "", false
	}
	return s, true
}
