package apitests

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

type fakeAdmin struct {
	createErr error
	deleteErr error
	created   []servicedef.AdminCreateUserParams
	deleted   []string
}

func (f *fakeAdmin) CreateUser(_ context.Context, params servicedef.AdminCreateUserParams, _ framework.Logger) (servicedef.User, error) {
	if f.createErr != nil {
		return servicedef.User{}, f.createErr
	}
	f.created = append(f.created, params)
	return servicedef.User{ID: "id-" + params.Email, Email: params.Email}, nil
}

func (f *fakeAdmin) DeleteUser(_ context.Context, id string, _ framework.Logger) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func fakeEnv(admin *fakeAdmin) *environment {
	cfg := &config.Config{
		AuthURL:              "http://localhost/auth/v1",
		AnonKey:              "anon",
		ServiceKey:           ldvalue.NewOptionalString("service"),
		EphemeralEmailDomain: "example.com",
		EphemeralPassword:    "pw",
		Credentials:          config.Credentials{ValidEmail: "a@example.com", ValidPassword: "b"},
	}
	return &environment{
		config:       cfg,
		admin:        admin,
		capabilities: cfg.Capabilities(),
		logger:       zap.NewNop().Sugar(),
	}
}

func TestEphemeralEmail(t *testing.T) {
	a, b := ephemeralEmail("gmail.com"), ephemeralEmail("gmail.com")
	assert.Regexp(t, regexp.MustCompile(`^u_[0-9a-f]{8}@gmail\.com$`), a)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^u_[0-9a-f]{8}@gmail\.com$`, ephemeralEmail(""))
	assert.Regexp(t, `@example\.com$`, ephemeralEmail("example.com"))
}

func TestNewEphemeralUserRequestsConfirmedUser(t *testing.T) {
	admin := &fakeAdmin{}
	var user EphemeralUser
	results := runScenario(fakeEnv(admin), func(t *T) {
		user = t.NewEphemeralUser()
	})

	require.True(t, results.OK())
	require.Len(t, admin.created, 1)
	assert.True(t, admin.created[0].EmailConfirm)
	assert.Equal(t, "pw", admin.created[0].Password)
	assert.Equal(t, user.Email, admin.created[0].Email)
	assert.Equal(t, []string{user.ID}, admin.deleted)
}

func TestFixtureSetupFailureIsDistinct(t *testing.T) {
	admin := &fakeAdmin{createErr: errors.New("platform is down")}
	bodyRan := false
	results := runScenario(fakeEnv(admin), func(t *T) {
		t.NewEphemeralUser()
		bodyRan = true
	})

	assert.False(t, bodyRan)
	require.Len(t, results.Failures, 1)
	require.Len(t, results.Failures[0].Errors, 1)
	assert.Regexp(t, "^fixture setup: could not create ephemeral user", results.Failures[0].Errors[0].Error())
	assert.Empty(t, admin.deleted)
}

func TestTeardownErrorBecomesWarning(t *testing.T) {
	admin := &fakeAdmin{deleteErr: errors.New("HTTP 500")}
	results := runScenario(fakeEnv(admin), func(t *T) {
		t.NewEphemeralUser()
	})

	assert.True(t, results.OK())
	require.Len(t, results.Warnings, 1)
	assert.Contains(t, results.Warnings[0].Warnings[0], "HTTP 500")
	assert.Len(t, admin.deleted, 1)
}

func TestTeardownErrorInSkippedScenarioIsStillReported(t *testing.T) {
	admin := &fakeAdmin{deleteErr: errors.New("HTTP 500")}
	results := runScenario(fakeEnv(admin), func(t *T) {
		t.NewEphemeralUser()
		t.RequireCapability("not-configured")
	})

	assert.True(t, results.OK())
	require.Len(t, results.Skipped, 1)
	assert.Len(t, admin.deleted, 1)
	require.Len(t, results.Warnings, 1)
	assert.Equal(t, "scenario", results.Warnings[0].TestID.String())
	require.Len(t, results.Warnings[0].Warnings, 1)
	assert.Contains(t, results.Warnings[0].Warnings[0], "HTTP 500")
}

func TestAdoptUserWithoutAdminWarns(t *testing.T) {
	env := fakeEnv(nil)
	env.admin = nil
	results := runScenario(env, func(t *T) {
		t.AdoptUser("someone")
		t.AdoptUser("")
	})
	assert.True(t, results.OK())
	require.Len(t, results.Warnings, 1)
	assert.Len(t, results.Warnings[0].Warnings, 1)
}

func TestHeaderSets(t *testing.T) {
	runScenario(fakeEnv(&fakeAdmin{}), func(st *T) {
		anon := st.AnonHeaders()
		assert.Equal(t, HeaderSet{"apikey": "anon", "Content-Type": "application/json"}, anon)

		bearer := st.BearerHeaders("tok")
		assert.Equal(t, "Bearer tok", bearer["Authorization"])
		assert.NotContains(t, anon, "Authorization", "With must not modify the original set")

		service := st.ServiceHeaders()
		assert.Equal(t, "service", service["apikey"])
		assert.Equal(t, "Bearer service", service["Authorization"])

		assert.Equal(t, servicedef.PaymentEventType, st.PaymentPayload().Type)
		assert.Equal(t, "123", st.NotPaymentPayload().Data.ID)
	})
}

func TestServiceHeadersSkipWithoutServiceKey(t *testing.T) {
	env := fakeEnv(&fakeAdmin{})
	env.capabilities = withoutCapability(env.capabilities, config.CapabilityAdmin)
	results := runScenario(env, func(t *T) {
		t.ServiceHeaders()
	})
	require.Len(t, results.Skipped, 1)
	assert.Contains(t, results.Skipped[0].SkipReason, config.CapabilityAdmin)
}
