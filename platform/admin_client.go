// Package platform talks to the privileged admin API of the hosted auth platform. It is used only
// to provision and remove test users; the API under test is never called through here.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

var (
	// ErrNoServiceKey means the admin API cannot be used because no service key was configured.
	ErrNoServiceKey = errors.New("no service key configured for the platform admin API")

	// ErrUnexpectedStatus is matched by every *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected response status from platform admin API")
)

// StatusError is returned when the admin API answers with a status we did not expect.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: platform admin API returned HTTP status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// AdminClient calls the platform admin API with the service key.
type AdminClient struct {
	session    *framework.Session
	authURL    string
	serviceKey string
}

// NewAdminClient returns ErrNoServiceKey if serviceKey is undefined.
func NewAdminClient(session *framework.Session, authURL string, serviceKey ldvalue.OptionalString) (*AdminClient, error) {
	if !serviceKey.IsDefined() || serviceKey.StringValue() == "" {
		return nil, ErrNoServiceKey
	}
	if authURL == "" {
		return nil, errors.New("auth URL is required for the platform admin API")
	}
	return &AdminClient{
		session:    session,
		authURL:    strings.TrimRight(authURL, "/"),
		serviceKey: serviceKey.StringValue(),
	}, nil
}

func (c *AdminClient) headers() map[string]string {
	return map[string]string{
		"apikey":        c.serviceKey,
		"Authorization": "Bearer " + c.serviceKey,
	}
}

// CreateUser creates a user. With EmailConfirm set the user can log in immediately.
func (c *AdminClient) CreateUser(
	ctx context.Context,
	params servicedef.AdminCreateUserParams,
	logger framework.Logger,
) (servicedef.User, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	logger.Printf("Creating platform user %s", params.Email)
	resp, err := c.session.Do(ctx, framework.Request{
		Method:  http.MethodPost,
		URL:     c.authURL + servicedef.AdminUsersPath,
		Headers: c.headers(),
		Body:    params,
	}, logger)
	if err != nil {
		return servicedef.User{}, fmt.Errorf("creating user %s: %w", params.Email, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return servicedef.User{}, &StatusError{Operation: "create user", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	var user servicedef.User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return servicedef.User{}, fmt.Errorf("malformed create user response: %s", string(resp.Body))
	}
	if user.ID == "" {
		return servicedef.User{}, fmt.Errorf("create user response had no id: %s", string(resp.Body))
	}
	logger.Printf("Created platform user %s with id %s", user.Email, user.ID)
	return user, nil
}

// DeleteUser removes a user by id.
func (c *AdminClient) DeleteUser(ctx context.Context, id string, logger framework.Logger) error {
	if logger == nil {
		logger = framework.NullLogger()
	}
	if id == "" {
		return errors.New("cannot delete user with empty id")
	}
	logger.Printf("Deleting platform user %s", id)
	resp, err := c.session.Do(ctx, framework.Request{
		Method:  http.MethodDelete,
		URL:     c.authURL + servicedef.AdminUsersPath + "/" + url.PathEscape(id),
		Headers: c.headers(),
	}, logger)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &StatusError{Operation: "delete user " + id, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return nil
}
