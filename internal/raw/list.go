package raw

import "strings"

// Sep joins list-valued columns in flattened rows.
const Sep = "|"

// Older dumps wrap every list in an object with a single key naming the
// element type ("pt_gov_ar_objectos_VotacaoOut") or, for lists of
// strings, "string".
var envelopePrefixes = []string{"pt_gov_ar_objectos_", "pt_ar_wsgode_objectos_"}

const envelopeString = "string"

func isEnvelope(key string) bool {
	if key == envelopeString {
		return true
	}
	for _, p := range envelopePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Unwrap returns the content of a list envelope, or v itself when v is not
// one.
func Unwrap(v Value) Value {
	keys := v.Keys()
	if len(keys) != 1 {
		return v
	}
	if isEnvelope(keys[0]) {
		return v.obj[keys[0]]
	}
	return v
}

// ToList normalizes the feed's single-object-or-array fields. An array is
// returned as is, Null becomes an empty list, and any other value is
// wrapped in a one-element list. List envelopes are unwrapped first.
func ToList(v Value) []Value {
	v = Unwrap(v)
	switch v.kind {
	case Null:
		return nil
	case Array:
		return v.arr
	default:
		return []Value{v}
	}
}

// Field collects v.Get(key).Text("") for each truthy element of list, in
// source order. Falsy elements are skipped entirely.
func Field(list []Value, key string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if !item.Truthy() {
			continue
		}
		out = append(out, item.Str(key, ""))
	}
	return out
}

// JoinField is Field joined with Sep.
func JoinField(list []Value, key string) string {
	return strings.Join(Field(list, key), Sep)
}

// Texts renders every element of list as text, keeping empties so the
// position of each element is preserved.
func Texts(list []Value) []string {
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.Text("")
	}
	return out
}
