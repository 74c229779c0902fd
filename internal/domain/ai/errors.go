package ai

import "errors"

// ErrQuotaExceeded indicates the inference provider returned a quota/limit
// error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrNoVisionModel indicates every model in the vision fallback list failed.
var ErrNoVisionModel = errors.New("all vision models unavailable")
