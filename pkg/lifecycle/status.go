package lifecycle

import "encoding/json"

// Close status codes the manager distinguishes. Only loggedOut changes
// behavior; everything else is a transient close.
const (
	StatusLoggedOut       = 401
	StatusRestartRequired = 515
)

// statusPaths lists the known shapes the transport uses to surface the
// close status code, in precedence order. Boom-style errors nest it under
// output; older layers put it at the top level.
var statusPaths = [][]string{
	{"output", "statusCode"},
	{"output", "payload", "statusCode"},
	{"statusCode"},
}

// CloseStatusCode extracts the status code from a disconnect error payload.
// Returns ok=false when no shape matches (treated as a transient close).
func CloseStatusCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, false
	}

	for _, path := range statusPaths {
		if code, ok := dig(obj, path); ok {
			return code, true
		}
	}
	return 0, false
}

func dig(obj map[string]any, path []string) (int, bool) {
	cur := any(obj)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		cur, ok = m[key]
		if !ok {
			return 0, false
		}
	}
	// JSON numbers decode as float64.
	if f, ok := cur.(float64); ok {
		return int(f), true
	}
	return 0, false
}
