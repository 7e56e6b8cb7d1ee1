package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-marketplace-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OTPEnvelope wraps code issuance responses.
type OTPEnvelope struct {
	Message  string          `json:"message"`
	Delivery domain.Delivery `json:"delivery"`
}

// SessionInfo is the public view of a session token's claims.
type SessionInfo struct {
	Subject   string    `json:"subject"`
	Channel   string    `json:"channel"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthEnvelope wraps a successful verification.
type AuthEnvelope struct {
	Bearer  string       `json:"Bearer"`
	Session *SessionInfo `json:"session"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *SessionInfo `json:"session"`
}

// DeleteEnvelope reports how many objects a bulk delete removed.
type DeleteEnvelope struct {
	Deleted int `json:"deleted"`
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
