package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// ErrInvalidBody reports a request body that is not a single well-formed JSON object.
var ErrInvalidBody = errors.New("invalid request body")

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON reads a bounded request body into dst, rejecting unknown fields and
// trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: body is required", ErrInvalidBody)
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: body is required", ErrInvalidBody)
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: unexpected trailing data", ErrInvalidBody)
	}
	return nil
}
