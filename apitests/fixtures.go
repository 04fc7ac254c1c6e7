package apitests

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

const (
	fixtureSetupPrefix    = "fixture setup: "
	defaultReleaseTimeout = 10 * time.Second
)

// Credentials are the static login credentials for the run.
type Credentials = config.Credentials

// HeaderSet is a set of request headers.
type HeaderSet map[string]string

// With returns a copy of the set with one more header.
func (h HeaderSet) With(name, value string) HeaderSet {
	ret := make(HeaderSet, len(h)+1)
	for k, v := range h {
		ret[k] = v
	}
	ret[name] = value
	return ret
}

// EphemeralUser is a confirmed user that exists only for the duration of one test.
type EphemeralUser struct {
	ID       string
	Email    string
	Password string
}

// Credentials returns a copy of the configured credentials.
func (t *T) Credentials() Credentials {
	return t.env.config.Credentials
}

// AnonHeaders are the headers for calls made with the public anon key.
func (t *T) AnonHeaders() HeaderSet {
	return HeaderSet{
		"apikey":       t.env.config.AnonKey,
		"Content-Type": "application/json",
	}
}

// ServiceHeaders are the headers for privileged calls. The test is skipped if there is no
// service key.
func (t *T) ServiceHeaders() HeaderSet {
	t.RequireCapability(config.CapabilityAdmin)
	key := t.env.config.ServiceKey.StringValue()
	return HeaderSet{
		"apikey":        key,
		"Authorization": "Bearer " + key,
		"Content-Type":  "application/json",
	}
}

// BearerHeaders are the anon headers plus an access token.
func (t *T) BearerHeaders(accessToken string) HeaderSet {
	return t.AnonHeaders().With("Authorization", "Bearer "+accessToken)
}

func (t *T) NotPaymentPayload() servicedef.WebhookPayload {
	return servicedef.NotPaymentPayload()
}

func (t *T) PaymentPayload() servicedef.WebhookPayload {
	return servicedef.PaymentPayload()
}

// NewEphemeralUser creates a confirmed user through the admin API and schedules its deletion
// for the end of the test. The test is skipped if there is no service key, and fails
// immediately if the user cannot be created.
func (t *T) NewEphemeralUser() EphemeralUser {
	t.RequireCapability(config.CapabilityAdmin)

	u := EphemeralUser{
		Email:    ephemeralEmail(t.env.config.EphemeralEmailDomain),
		Password: t.env.config.EphemeralPassword,
	}
	created, err := t.env.admin.CreateUser(t.Context(), servicedef.AdminCreateUserParams{
		Email:        u.Email,
		Password:     u.Password,
		EmailConfirm: true,
	}, t.requestLogger())
	if err != nil {
		t.Errorf(fixtureSetupPrefix+"could not create ephemeral user %s: %s", u.Email, err)
		t.FailNow()
	}
	u.ID = created.ID
	t.AdoptUser(u.ID)
	t.Debug("Using ephemeral user %s (%s)", u.Email, u.ID)
	return u
}

// AdoptUser schedules deletion of a user that the test caused to be created some other way, such
// as through the signup function. Without a service key the user cannot be removed, which is
// reported as a warning.
func (t *T) AdoptUser(id string) {
	if id == "" {
		return
	}
	if t.env.admin == nil {
		t.Warnf("user %s was created but cannot be deleted without a service key", id)
		return
	}
	t.Defer(func() { t.releaseUser(id) })
}

func (t *T) releaseUser(id string) {
	timeout := t.env.config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultReleaseTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.Context()), timeout)
	defer cancel()
	if err := t.env.admin.DeleteUser(ctx, id, t.requestLogger()); err != nil {
		t.Warnf("could not delete user %s: %s", id, err)
		t.env.logger.Warnw("test user was not deleted", "test", t.ID().String(), "userID", id, "error", err)
	}
}

func ephemeralEmail(domain string) string {
	if domain == "" {
		domain = config.DefaultEphemeralEmailDomain
	}
	return "u_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + "@" + domain
}

// authURL joins a path to the auth API root.
func (t *T) authURL(path string, query url.Values) string {
	u := strings.TrimRight(t.env.config.AuthURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// PasswordGrant sends a login request and returns the response, whatever its status.
func (t *T) PasswordGrant(req servicedef.TokenRequest) *framework.Response {
	return t.Do(framework.Request{
		Method:  http.MethodPost,
		URL:     t.authURL(servicedef.TokenPath, url.Values{"grant_type": {servicedef.GrantTypePassword}}),
		Headers: t.AnonHeaders(),
		Body:    req,
	})
}

// Login logs in and returns the access token. The test fails immediately if login does not
// succeed.
func (t *T) Login(email, password string) string {
	resp := t.PasswordGrant(servicedef.TokenRequest{Email: email, Password: password})
	body := loginSuccessContract.Check(t, resp)
	return body.GetByKey("access_token").StringValue()
}
