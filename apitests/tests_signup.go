package apitests

import (
	"net/http"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

const emailTakenMessage = "E-mail já cadastrado"

func DoSignupTests(t *T) {
	t.RequireCapability(config.CapabilitySignup)

	t.Run("new user", func(t *T) {
		// The backend creates a real account, so only run this when it can be removed again.
		t.RequireCapability(config.CapabilityAdmin)

		resp := t.signup(servicedef.SignupRequest{
			Email:    ephemeralEmail(t.Config().EphemeralEmailDomain),
			Password: t.Config().EphemeralPassword,
		})
		if resp.StatusCode == http.StatusOK {
			t.AdoptUser(resp.JSON.GetByKey("userId").StringValue())
		}
		Contract{
			Status:  []int{http.StatusOK},
			True:    []string{"success"},
			HasKeys: []string{"userId"},
		}.Check(t, resp)
	})

	t.Run("duplicate email", func(t *T) {
		t.RequireCapability(config.CapabilityDuplicateSignup)

		resp := t.signup(servicedef.SignupRequest{
			Email:    t.Config().ConfirmedUserEmail,
			Password: "Qualquer#123",
		})
		Contract{
			Status: []int{http.StatusConflict},
			OneOf:  map[string][]string{"code": {"EMAIL_TAKEN", "EMAIL_PENDING"}},
			Equals: map[string]string{"message": emailTakenMessage},
		}.Check(t, resp)
	})
}

func (t *T) signup(req servicedef.SignupRequest) *framework.Response {
	return t.Do(framework.Request{
		Method:  http.MethodPost,
		URL:     t.Config().SignupURL,
		Headers: t.AnonHeaders().With("Authorization", "Bearer "+t.Config().AnonKey),
		Body:    req,
	})
}
