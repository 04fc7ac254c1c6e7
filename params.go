package main

import (
	"strings"

	"github.com/alessio/shellescape"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
)

type commandParams struct {
	configFile string
	filters    framework.RegexFilters
	debug      bool
	debugAll   bool
	logLevel   string
}

// configFlags are the settings that can also come from the environment or the config file. They
// are bound to viper so that a flag only wins when it is actually given.
var configFlags = []struct {
	name  string
	key   string
	usage string
}{
	{"base-url", config.KeyBaseURL, "webhook endpoint of the backend (API_BASE_URL)"},
	{"platform-url", config.KeyPlatformURL, "root URL of the auth platform project (SUPABASE_URL)"},
	{"auth-url", config.KeyAuthURL, "auth API root, defaults to <platform-url>/auth/v1 (SUPABASE_AUTH_URL)"},
	{"signup-url", config.KeySignupURL, "signup function endpoint (SIGNUP_URL)"},
	{"request-timeout", config.KeyRequestTimeout, "timeout for each request, for instance 10s (REQUEST_TIMEOUT)"},
	{"await-service", config.KeyAwaitServiceTimeout, "how long to wait for endpoints to become reachable, 0 to skip (AWAIT_SERVICE_TIMEOUT)"},
	{"auth-contract", config.KeyAuthContract, "auth error contract of the deployment: current, legacy or both (AUTH_CONTRACT)"},
}

func addConfigFlags(fs *pflag.FlagSet, params *commandParams) {
	fs.StringVar(&params.configFile, "config", "", "configuration file (toml, yaml or json)")
	for _, f := range configFlags {
		fs.String(f.name, "", f.usage)
	}
	fs.Bool("require-service-key", false, "fail instead of skipping privileged tests when there is no service key")
}

func bindConfigFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, f := range configFlags {
		if err := v.BindPFlag(f.key, fs.Lookup(f.name)); err != nil {
			return err
		}
	}
	return v.BindPFlag(config.KeyRequireServiceKey, fs.Lookup("require-service-key"))
}

func addRunFlags(fs *pflag.FlagSet, params *commandParams) {
	fs.Var(&params.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&params.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&params.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&params.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&params.logLevel, "log-level", "warn", "level of process log messages: debug, info, warn or error")
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// rerunCommand builds a command line that runs only the given tests again with debug output.
func rerunCommand(program string, params *commandParams, failures []framework.TestResult) string {
	var cmd commandBuilder
	cmd.add(program)
	cmd.add(rerunArgs(params, failures)...)
	return cmd.String()
}

func rerunArgs(params *commandParams, failures []framework.TestResult) []string {
	args := []string{"run"}
	if params.configFile != "" {
		args = append(args, "--config", params.configFile)
	}
	for _, f := range failures {
		args = append(args, "--run", framework.ExactMatch(f.TestID))
	}
	return append(args, "--debug")
}
