package constants

import "strings"

// EntityKind is one of the recognized key_entities buckets.
type EntityKind string

const (
	EntityPersonNames   EntityKind = "person_names"
	EntityOrganizations EntityKind = "organizations"
	EntityDates         EntityKind = "dates"
	EntityEmails        EntityKind = "emails"
	EntityPhoneNumbers  EntityKind = "phone_numbers"
	EntityAddresses     EntityKind = "addresses"
	EntityIDNumbers     EntityKind = "id_numbers"
	EntityAmounts       EntityKind = "amounts"
)

var allEntityKinds = []EntityKind{
	EntityPersonNames,
	EntityOrganizations,
	EntityDates,
	EntityEmails,
	EntityPhoneNumbers,
	EntityAddresses,
	EntityIDNumbers,
	EntityAmounts,
}

// EntityKinds returns the recognized kinds in their canonical order.
func EntityKinds() []EntityKind {
	out := make([]EntityKind, len(allEntityKinds))
	copy(out, allEntityKinds)
	return out
}

// CanonicalizeEntityKind maps a model-supplied key onto a recognized kind.
func CanonicalizeEntityKind(input string) (EntityKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]EntityKind{
		"names":             EntityPersonNames,
		"people":            EntityPersonNames,
		"persons":           EntityPersonNames,
		"person":            EntityPersonNames,
		"orgs":              EntityOrganizations,
		"organisations":     EntityOrganizations,
		"companies":         EntityOrganizations,
		"date":              EntityDates,
		"email":             EntityEmails,
		"email_addresses":   EntityEmails,
		"phones":            EntityPhoneNumbers,
		"phone":             EntityPhoneNumbers,
		"telephone_numbers": EntityPhoneNumbers,
		"address":           EntityAddresses,
		"ids":               EntityIDNumbers,
		"id_number":         EntityIDNumbers,
		"identifiers":       EntityIDNumbers,
		"amount":            EntityAmounts,
		"money":             EntityAmounts,
	}
	if kind, ok := synonyms[normalized]; ok {
		return kind, true
	}
	for _, kind := range allEntityKinds {
		if normalized == string(kind) {
			return kind, true
		}
	}
	return "", false
}
