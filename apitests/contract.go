package apitests

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/backend-qa/api-contract-tests/framework"
)

// Contract describes what a response must look like. Only the checks that are set are applied.
//
// A status mismatch, or a body that is not a JSON object when body checks are present, stops the
// test immediately. The remaining checks are reported individually so that one run shows every
// field that is wrong.
type Contract struct {
	// Status lists the acceptable status codes.
	Status []int

	HasKeys   []string
	HasAnyKey []string

	// Equals compares string values.
	Equals map[string]string
	True   []string

	// Contains and HasPrefix apply to string values.
	Contains  map[string]string
	HasPrefix map[string]string
	OneOf     map[string][]string

	EmptyBody bool
}

func (c Contract) hasBodyChecks() bool {
	return len(c.HasKeys) > 0 || len(c.HasAnyKey) > 0 || len(c.Equals) > 0 || len(c.True) > 0 ||
		len(c.Contains) > 0 || len(c.HasPrefix) > 0 || len(c.OneOf) > 0
}

// Check applies the contract to a response and returns the parsed body.
func (c Contract) Check(t *T, resp *framework.Response) ldvalue.Value {
	if len(c.Status) > 0 && !statusIn(resp.StatusCode, c.Status) {
		require.Failf(t, "unexpected status",
			"%s %s: expected status %s, got %d; body: %s",
			resp.Method, resp.URL, describeStatuses(c.Status), resp.StatusCode, string(resp.Body))
	}

	if c.EmptyBody {
		assert.Empty(t, strings.TrimSpace(string(resp.Body)), "expected an empty response body")
	}
	if !c.hasBodyChecks() {
		return resp.JSON
	}

	body := resp.JSON
	if body.Type() != ldvalue.ObjectType {
		require.Failf(t, "response body is not a JSON object", "%s %s: body: %s",
			resp.Method, resp.URL, string(resp.Body))
	}

	for _, key := range c.HasKeys {
		assert.True(t, body.GetByKey(key).IsDefined(), "response should have property %q; body: %s", key, body)
	}
	if len(c.HasAnyKey) > 0 {
		found := false
		for _, key := range c.HasAnyKey {
			found = found || body.GetByKey(key).IsDefined()
		}
		assert.True(t, found, "response should have at least one of %v; body: %s", c.HasAnyKey, body)
	}
	for _, key := range sortedKeys(c.Equals) {
		assert.Equal(t, c.Equals[key], body.GetByKey(key).StringValue(), "property %q", key)
	}
	for _, key := range c.True {
		assert.True(t, body.GetByKey(key).BoolValue(), "property %q should be true; body: %s", key, body)
	}
	for _, key := range sortedKeys(c.Contains) {
		assert.Contains(t, body.GetByKey(key).StringValue(), c.Contains[key], "property %q", key)
	}
	for _, key := range sortedKeys(c.HasPrefix) {
		value := body.GetByKey(key).StringValue()
		assert.True(t, strings.HasPrefix(value, c.HasPrefix[key]),
			"property %q should start with %q but was %q", key, c.HasPrefix[key], value)
	}
	for _, key := range sortedKeys(c.OneOf) {
		assert.Contains(t, c.OneOf[key], body.GetByKey(key).StringValue(), "property %q", key)
	}
	return body
}

func statusIn(status int, statuses []int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func describeStatuses(statuses []int) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, fmt.Sprint(s))
	}
	return strings.Join(parts, " or ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
