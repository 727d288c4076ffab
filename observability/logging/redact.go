package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"

// Fields that may carry credentials (bearer tokens, JWT secrets, keystore
// passphrases) go through MaskField so a call site cannot leak them. The
// allowlist names the keys that are always safe to print verbatim.
var plaintextKeys = map[string]struct{}{
	"addr":      {},
	"admin":     {},
	"component": {},
	"env":       {},
	"error":     {},
	"method":    {},
	"network":   {},
	"reason":    {},
	"rpc":       {},
	"sequence":  {},
	"service":   {},
	"status":    {},
}

// IsPlaintextKey reports whether values logged under the key are printed
// verbatim.
func IsPlaintextKey(key string) bool {
	_, ok := plaintextKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// PlaintextKeys returns a sorted copy of the allowlist so tests can pin the
// set of keys exempt from masking.
func PlaintextKeys() []string {
	keys := make([]string, 0, len(plaintextKeys))
	for key := range plaintextKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr with the value replaced by Redacted unless
// the key is allowlisted. Empty values pass through unchanged so a disabled
// feature stays visible in the log line.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPlaintextKey(key) {
		return slog.String(key, value)
	}
	return slog.String(key, Redacted)
}
