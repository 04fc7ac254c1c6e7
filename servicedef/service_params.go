// Package servicedef describes the JSON shapes exchanged with the backend under test and with the
// auth platform's admin API.
package servicedef

const (
	GrantTypePassword = "password"

	PaymentEventType      = "payment"
	SubscriptionEventType = "subscription"
)

// Paths relative to the auth API root.
const (
	TokenPath      = "/token"
	LogoutPath     = "/logout"
	UserPath       = "/user"
	AdminUsersPath = "/admin/users"
)

// TokenRequest is the body of a password grant.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// TokenResponse is a successful password grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// User is the user object returned by the auth API.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role,omitempty"`
	EmailConfirmedAt string `json:"email_confirmed_at,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// CurrentAuthError is the error shape of the current auth API.
type CurrentAuthError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

// LegacyAuthError is the OAuth-style error shape of older auth API versions.
type LegacyAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AdminCreateUserParams is the body of an admin user creation request.
type AdminCreateUserParams struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

// SignupRequest is the body sent to the backend's signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse is a successful signup.
type SignupResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

// SignupError is the backend's error shape for signup.
type SignupError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebhookPayload is a payment-notification event.
type WebhookPayload struct {
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

type WebhookData struct {
	ID string `json:"id"`
}

// NotPaymentPayload is an event the webhook is expected to acknowledge and ignore.
func NotPaymentPayload() WebhookPayload {
	return WebhookPayload{Type: SubscriptionEventType, Data: WebhookData{ID: "123"}}
}

// PaymentPayload is a payment event whose id does not exist at the payment provider.
func PaymentPayload() WebhookPayload {
	return WebhookPayload{Type: PaymentEventType, Data: WebhookData{ID: "123456"}}
}
