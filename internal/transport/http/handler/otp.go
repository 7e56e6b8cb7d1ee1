package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-marketplace-api/internal/application/otp"
	"github.com/go-marketplace-api/internal/domain"
	"github.com/go-marketplace-api/internal/pkg/validate"
)

// TokenSigner issues session tokens for verified identifiers.
type TokenSigner interface {
	Sign(subject, channel, role string) (string, error)
	Expiry() time.Duration
}

// OTPRequest names exactly one identifier.
type OTPRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// VerifyRequest carries the identifier and the code the user received.
type VerifyRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	OTP   string `json:"otp" validate:"required,numeric,len=4"`
}

// identifier returns the single identifier named by the request.
func identifier(email, phone string) (string, domain.Channel, bool) {
	email, phone = strings.TrimSpace(email), strings.TrimSpace(phone)
	switch {
	case email != "" && phone == "":
		return email, domain.ChannelEmail, true
	case phone != "" && email == "":
		return phone, domain.ChannelPhone, true
	}
	return "", "", false
}

// OTPHandler handles code issuance and verification.
type OTPHandler struct {
	svc    otp.Service
	signer TokenSigner
	cookie SessionCookie
	admins domain.AdminSet
	now    func() time.Time
}

func NewOTPHandler(svc otp.Service, signer TokenSigner, cookie SessionCookie, adminIdentifiers []string) *OTPHandler {
	admins := make(domain.AdminSet, len(adminIdentifiers))
	for _, raw := range adminIdentifiers {
		id, _, err := otp.NormalizeIdentifier(raw)
		if err != nil {
			slog.Warn("ignoring malformed admin identifier", "identifier", raw, "err", err)
			continue
		}
		admins[id] = struct{}{}
	}
	return &OTPHandler{svc: svc, signer: signer, cookie: cookie, admins: admins, now: time.Now}
}

func (h *OTPHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, channel, ok := identifier(req.Email, req.Phone)
	if !ok {
		writeError(w, http.StatusBadRequest, "exactly one of email or phone is required")
		return
	}
	delivery, err := h.svc.Issue(r.Context(), id, channel)
	if err != nil {
		httpError(w, err)
		return
	}
	msg := "OTP sent"
	if delivery == domain.DeliverySkipped {
		msg = "OTP issued"
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Message: msg, Delivery: delivery})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, _, ok := identifier(req.Email, req.Phone)
	if !ok {
		writeError(w, http.StatusBadRequest, "exactly one of email or phone is required")
		return
	}
	verified, err := h.svc.Verify(r.Context(), id, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	if !verified {
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	// Verify accepted it, so normalization cannot fail here.
	subject, channel, _ := otp.NormalizeIdentifier(id)
	role := h.admins.RoleOf(subject)
	token, err := h.signer.Sign(subject, string(channel), role)
	if err != nil {
		slog.Error("failed to sign session", "identifier", subject, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	expiresAt := h.now().Add(h.signer.Expiry())
	h.cookie.set(w, token, expiresAt)
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Bearer: token,
		Session: &SessionInfo{
			Subject:   subject,
			Channel:   string(channel),
			Role:      role,
			ExpiresAt: expiresAt.UTC(),
		},
	})
}
