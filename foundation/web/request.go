package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dimfeld/httptreemux/v5"
)

// Decode reads the request body and unmarshals it into val. Struct-tag
// validation, where required, is a separate step the caller runs via
// internal/validate — this only handles the JSON wire format.
func Decode(r *http.Request, val any) error {
	if err := json.NewDecoder(r.Body).Decode(val); err != nil {
		return fmt.Errorf("web: unable to decode payload: %w", err)
	}
	return nil
}

// Param returns the web call parameters from the request context.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}
