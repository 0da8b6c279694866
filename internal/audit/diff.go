package audit

import (
	"reflect"
	"strings"
)

// credentialMarkers are field-name substrings that must never reach the
// trail, even when present in the operation payload. Matching fields are
// dropped entirely rather than masked.
var credentialMarkers = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"private_key",
}

// diffSnapshots computes the minimal per-field diff between two snapshots: a
// field appears only when its value differs between the two, shaped
// {old, new}. Fields present in just one snapshot diff against nil. The diff
// never contains data absent from both inputs.
func diffSnapshots(oldValues, newValues map[string]any) map[string]Change {
	changes := make(map[string]Change)
	for field, oldVal := range oldValues {
		newVal, inNew := newValues[field]
		if !inNew {
			changes[field] = Change{Old: oldVal, New: nil}
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			changes[field] = Change{Old: oldVal, New: newVal}
		}
	}
	for field, newVal := range newValues {
		if _, inOld := oldValues[field]; !inOld {
			changes[field] = Change{Old: nil, New: newVal}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func isCredentialField(name string) bool {
	lowered := strings.ToLower(name)
	for _, marker := range credentialMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// redactSnapshot returns a copy of the snapshot with credential-like fields
// removed, recursing through nested maps. The input is never mutated; the
// caller may still hand the original payload to the business operation.
func redactSnapshot(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for field, val := range values {
		if isCredentialField(field) {
			continue
		}
		if nested, ok := val.(map[string]any); ok {
			out[field] = redactSnapshot(nested)
			continue
		}
		out[field] = val
	}
	return out
}

// redactChanges removes credential-like fields from a computed diff.
func redactChanges(changes map[string]Change) map[string]Change {
	if changes == nil {
		return nil
	}
	out := make(map[string]Change, len(changes))
	for field, ch := range changes {
		if isCredentialField(field) {
			continue
		}
		out[field] = ch
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// snapshotToChanges shapes a bare snapshot as a create-style diff (old=nil).
func snapshotToChanges(values map[string]any) map[string]Change {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]Change, len(values))
	for field, val := range values {
		out[field] = Change{Old: nil, New: val}
	}
	return out
}
