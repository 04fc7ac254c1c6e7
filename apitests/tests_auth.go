package apitests

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

const (
	invalidCredentialsMessage = "Invalid login credentials"
	missingEmailMessage       = "missing email or phone"
)

var loginSuccessContract = Contract{
	Status:  []int{http.StatusOK},
	HasKeys: []string{"access_token", "refresh_token", "expires_in", "expires_at"},
}

// authErrorContract describes how one version of the auth API reports a rejected request.
type authErrorContract struct {
	capability string
	codeKey    string
	messageKey string
	extraKeys  []string
}

func (c authErrorContract) rejection(messageFragment string) Contract {
	return Contract{
		Status:   []int{http.StatusBadRequest},
		HasKeys:  append([]string{c.codeKey}, c.extraKeys...),
		Contains: map[string]string{c.messageKey: messageFragment},
	}
}

// doAuthContractTests runs the login, logout and user info scenarios. The success cases are the
// same for every version of the API; the error cases are checked against the given contract.
func doAuthContractTests(t *T, errs authErrorContract) {
	t.RequireCapability(config.CapabilityAuth)
	t.RequireCapability(errs.capability)

	t.Run("login success", func(t *T) {
		t.RequireCapability(config.CapabilityLogin)
		creds := t.Credentials()
		resp := t.PasswordGrant(servicedef.TokenRequest{Email: creds.ValidEmail, Password: creds.ValidPassword})
		loginSuccessContract.Check(t, resp)
	})

	t.Run("login invalid credentials", func(t *T) {
		creds := t.Credentials()
		resp := t.PasswordGrant(servicedef.TokenRequest{
			Email:    creds.InvalidEmail,
			Password: creds.InvalidPassword,
			FullName: "Contract Test",
			Phone:    "11999999999",
		})
		errs.rejection(invalidCredentialsMessage).Check(t, resp)
	})

	t.Run("login missing email", func(t *T) {
		resp := t.PasswordGrant(servicedef.TokenRequest{Email: "", Password: "password123"})
		errs.rejection(missingEmailMessage).Check(t, resp)
	})

	t.Run("login missing password", func(t *T) {
		t.RequireCapability(config.CapabilityLogin)
		resp := t.PasswordGrant(servicedef.TokenRequest{Email: t.Credentials().ValidEmail, Password: ""})
		errs.rejection(invalidCredentialsMessage).Check(t, resp)
	})

	t.Run("logout", func(t *T) {
		t.RequireCapability(config.CapabilityLogin)
		creds := t.Credentials()
		token := t.Login(creds.ValidEmail, creds.ValidPassword)

		resp := t.Do(framework.Request{
			Method:  http.MethodPost,
			URL:     t.authURL(servicedef.LogoutPath, nil),
			Headers: t.BearerHeaders(token),
		})
		Contract{Status: []int{http.StatusNoContent}, EmptyBody: true}.Check(t, resp)
	})

	t.Run("get user info", func(t *T) {
		t.RequireCapability(config.CapabilityLogin)
		creds := t.Credentials()
		token := t.Login(creds.ValidEmail, creds.ValidPassword)

		resp := t.Do(framework.Request{
			Method:  http.MethodGet,
			URL:     t.authURL(servicedef.UserPath, nil),
			Headers: t.BearerHeaders(token),
		})
		Contract{
			Status:  []int{http.StatusOK},
			HasKeys: []string{"id", "email"},
			Equals:  map[string]string{"email": creds.ValidEmail},
		}.Check(t, resp)
	})

	t.Run("access token identifies user", func(t *T) {
		t.RequireCapability(config.CapabilityLogin)
		creds := t.Credentials()
		token := t.Login(creds.ValidEmail, creds.ValidPassword)

		claims := jwt.MapClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(token, claims)
		require.NoError(t, err, "access token is not a JWT")
		assert.Equal(t, creds.ValidEmail, claims["email"], "email claim of access token")
		sub, _ := claims.GetSubject()
		assert.NotEmpty(t, sub, "access token has no subject")
	})

	t.Run("ephemeral user can log in", func(t *T) {
		user := t.NewEphemeralUser()
		resp := t.PasswordGrant(servicedef.TokenRequest{Email: user.Email, Password: user.Password})
		loginSuccessContract.Check(t, resp)
	})
}
