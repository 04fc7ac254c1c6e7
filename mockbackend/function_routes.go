package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/backend-qa/api-contract-tests/servicedef"
)

const (
	WebhookWorkingMessage   = "Webhook test endpoint is working!"
	EmailTakenMessage       = "E-mail já cadastrado"
	SignupEmailTakenCode    = "EMAIL_TAKEN"
	methodNotAllowedMessage = "Method not allowed"
)

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req servicedef.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, servicedef.SignupError{Code: "INVALID_BODY", Message: "Corpo da requisição inválido"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, servicedef.SignupError{Code: "MISSING_FIELDS", Message: "E-mail e senha são obrigatórios"})
		return
	}

	b.lock.Lock()
	u, created := b.addUserLocked(req.Email, req.Password, true)
	b.lock.Unlock()
	if !created {
		writeJSON(w, http.StatusConflict, servicedef.SignupError{Code: SignupEmailTakenCode, Message: EmailTakenMessage})
		return
	}
	writeJSON(w, http.StatusOK, servicedef.SignupResponse{Success: true, UserID: u.id})
}

// handleWebhook mimics the payment webhook function. Payment events trigger a lookup of the
// payment at the payment provider, which never finds the fake ids the tests send.
func (b *Backend) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"message":   WebhookWorkingMessage,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	case http.MethodPost:
		var payload servicedef.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
			return
		}
		if payload.Type != servicedef.PaymentEventType {
			writeJSON(w, http.StatusOK, map[string]string{
				"message": fmt.Sprintf("Webhook ignored: event type %q is not handled", payload.Type),
			})
			return
		}
		writeJSON(w, b.opts.PaymentLookupStatus, map[string]string{
			"error":   "Payment lookup failed",
			"message": fmt.Sprintf("Erro ao buscar pagamento: %d", http.StatusNotFound),
		})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": methodNotAllowedMessage})
	}
}
