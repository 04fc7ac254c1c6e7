package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

func newTestClient(t *testing.T, baseURL string) *AdminClient {
	session := framework.NewSession(framework.SessionOptions{})
	t.Cleanup(session.Close)
	c, err := NewAdminClient(session, baseURL+"/auth/v1/", ldvalue.NewOptionalString("service-key"))
	require.NoError(t, err)
	return c
}

func TestNewAdminClientRequiresServiceKey(t *testing.T) {
	session := framework.NewSession(framework.SessionOptions{})
	defer session.Close()

	_, err := NewAdminClient(session, "http://localhost/auth/v1", ldvalue.OptionalString{})
	assert.ErrorIs(t, err, ErrNoServiceKey)

	_, err = NewAdminClient(session, "http://localhost/auth/v1", ldvalue.NewOptionalString(""))
	assert.ErrorIs(t, err, ErrNoServiceKey)
}

func TestCreateUser(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.HandlerWithJSONResponse(servicedef.User{ID: "user-1", Email: "u_1@example.com"}, nil),
	)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := newTestClient(t, server.URL)

		user, err := c.CreateUser(context.Background(), servicedef.AdminCreateUserParams{
			Email:        "u_1@example.com",
			Password:     "pw",
			EmailConfirm: true,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)

		r := <-requestsCh
		assert.Equal(t, http.MethodPost, r.Request.Method)
		assert.Equal(t, "/auth/v1/admin/users", r.Request.URL.Path)
		assert.Equal(t, "service-key", r.Request.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Request.Header.Get("Authorization"))

		var params servicedef.AdminCreateUserParams
		require.NoError(t, json.Unmarshal(r.Body, &params))
		assert.True(t, params.EmailConfirm)
	})
}

func TestCreateUserErrors(t *testing.T) {
	t.Run("error status", func(t *testing.T) {
		httphelpers.WithServer(httphelpers.HandlerWithResponse(422, nil, []byte(`{"msg":"weak password"}`)),
			func(server *httptest.Server) {
				_, err := newTestClient(t, server.URL).CreateUser(context.Background(), servicedef.AdminCreateUserParams{}, nil)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnexpectedStatus)
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, 422, se.StatusCode)
				assert.Contains(t, se.Body, "weak password")
			})
	})

	t.Run("missing id", func(t *testing.T) {
		httphelpers.WithServer(httphelpers.HandlerWithJSONResponse(map[string]string{"email": "x"}, nil),
			func(server *httptest.Server) {
				_, err := newTestClient(t, server.URL).CreateUser(context.Background(), servicedef.AdminCreateUserParams{}, nil)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no id")
			})
	})

	t.Run("not JSON", func(t *testing.T) {
		httphelpers.WithServer(httphelpers.HandlerWithResponse(200, nil, []byte("<html>")),
			func(server *httptest.Server) {
				_, err := newTestClient(t, server.URL).CreateUser(context.Background(), servicedef.AdminCreateUserParams{}, nil)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "malformed")
			})
	})
}

func TestDeleteUser(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := newTestClient(t, server.URL)
		require.NoError(t, c.DeleteUser(context.Background(), "user-1", nil))

		r := <-requestsCh
		assert.Equal(t, http.MethodDelete, r.Request.Method)
		assert.Equal(t, "/auth/v1/admin/users/user-1", r.Request.URL.Path)
	})
}

func TestDeleteUserErrors(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(404), func(server *httptest.Server) {
		c := newTestClient(t, server.URL)

		err := c.DeleteUser(context.Background(), "gone", nil)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)

		err = c.DeleteUser(context.Background(), "", nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnexpectedStatus)
	})
}
