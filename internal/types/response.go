package types

// ResponseMeta contains non-blocking metadata returned with API responses.
// Warnings carry partial-failure notices (for example a forecast that could not
// be fetched while the current observation succeeded).
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}
