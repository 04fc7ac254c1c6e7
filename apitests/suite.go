package apitests

import (
	"context"

	"go.uber.org/zap"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/platform"
)

// SuiteOptions holds everything a run needs. Config and Session are required.
type SuiteOptions struct {
	Config  *config.Config
	Session *framework.Session

	// Admin provisions ephemeral users. If nil, a platform admin client is created when the
	// configuration has a service key.
	Admin UserAdmin

	Logger     *zap.Logger
	Filter     framework.Filter
	TestLogger framework.TestLogger
}

func newEnvironment(opts SuiteOptions) *environment {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	env := &environment{
		config:       opts.Config,
		session:      opts.Session,
		admin:        opts.Admin,
		capabilities: opts.Config.Capabilities(),
		logger:       logger.Sugar(),
	}
	if env.admin == nil {
		client, err := platform.NewAdminClient(opts.Session, opts.Config.AuthURL, opts.Config.ServiceKey)
		if err == nil {
			env.admin = client
		} else {
			env.logger.Infow("ephemeral users are not available", "reason", err)
		}
	}
	if env.admin == nil {
		env.capabilities = withoutCapability(env.capabilities, config.CapabilityAdmin)
	}
	return env
}

func withoutCapability(caps framework.Capabilities, name string) framework.Capabilities {
	var ret framework.Capabilities
	for _, c := range caps {
		if c != name {
			ret = append(ret, c)
		}
	}
	return ret
}

// RunTestSuite runs every scenario that the filter and the configuration allow.
func RunTestSuite(ctx context.Context, opts SuiteOptions) framework.Results {
	env := newEnvironment(opts)
	return framework.Run(ctx, opts.Filter, opts.TestLogger, func(c *framework.Context) {
		t := &T{context: c, env: env}

		t.Run("webhook", DoWebhookTests)
		t.Run("auth", func(t *T) {
			t.Run("current contract", DoCurrentContractAuthTests)
			t.Run("legacy contract", DoLegacyContractAuthTests)
		})
		t.Run("signup", DoSignupTests)
		t.Run("admin", DoAdminTests)
	})
}
