package domain

import "strings"

// NormalizeDBName strips any collection-qualifier suffix (the substring
// from the first '.' onward) from a namespace or bare database name,
// mirroring the original engine's nsToDatabase.
func NormalizeDBName(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[:i]
	}
	return ns
}

// CollectionPart returns everything after the first '.' in a fully
// qualified namespace "<db>.<collection>", or "" if ns has no '.'.
func CollectionPart(ns string) string {
	i := strings.IndexByte(ns, '.')
	if i < 0 {
		return ""
	}
	return ns[i+1:]
}

// IsSystemCollection reports whether ns names one of the engine's
// reserved system.* collections.
func IsSystemCollection(ns string) bool {
	return strings.HasPrefix(CollectionPart(ns), "system.")
}

// IsNormalCollection reports whether ns is a normal collection: it
// carries no '$' (reserved for internal constructs such as index
// namespaces in the original engine). Unlike IsSystemCollection, this
// does not exclude system.* collections — system.users, system.js, and
// any other system collection besides system.namespaces/system.indexes
// are normal and get copied during repair, matching the original
// engine's NamespaceString::isNormal(), which filters on '$' alone.
func IsNormalCollection(ns string) bool {
	coll := CollectionPart(ns)
	if coll == "" {
		return false
	}
	return !strings.Contains(coll, "$")
}
