package apitests

import (
	"net/http"

	"github.com/stretchr/testify/assert"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

func DoAdminTests(t *T) {
	t.RequireCapability(config.CapabilityAdmin)

	t.Run("ephemeral user creation", func(t *T) {
		user := t.NewEphemeralUser()
		assert.NotEmpty(t, user.ID)
	})

	t.Run("anon key cannot create users", func(t *T) {
		email := ephemeralEmail(t.Config().EphemeralEmailDomain)
		resp := t.Do(framework.Request{
			Method:  http.MethodPost,
			URL:     t.authURL(servicedef.AdminUsersPath, nil),
			Headers: t.BearerHeaders(t.Config().AnonKey),
			Body: servicedef.AdminCreateUserParams{
				Email:        email,
				Password:     t.Config().EphemeralPassword,
				EmailConfirm: true,
			},
		})
		if resp.StatusCode < 300 {
			t.AdoptUser(resp.JSON.GetByKey("id").StringValue())
		}
		Contract{Status: []int{http.StatusUnauthorized, http.StatusForbidden}}.Check(t, resp)
	})
}
