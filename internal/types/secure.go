package types

import "log/slog"

const redacted = "***REDACTED***"

// SecretString holds a credential (the provider API key) and keeps it out of
// logs and serialized config dumps. Unmask returns the raw value for the one
// place that needs it: the outbound query string.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redacted
}

// LogValue implements slog.LogValuer so structured log attributes are redacted too.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}
