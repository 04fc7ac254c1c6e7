package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/backend-qa/api-contract-tests/apitests"
	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/logging"
	"github.com/backend-qa/api-contract-tests/mockbackend"
)

const defaultMockPort = 8111

var errTestsFailed = errors.New("some tests failed")

const bothContractsNote = "Both auth contract suites are selected. A deployment implements only one of them, " +
	"so one suite is expected to fail; set --auth-contract (AUTH_CONTRACT) to current or legacy to run just one."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	params := &commandParams{}
	v := config.NewViper()

	root := &cobra.Command{
		Use:   "contract-tests",
		Short: "Contract tests for the auth API, signup and payment webhook of a deployment",
		Long: `Runs the contract test suite against a live or staging deployment.

Settings come from environment variables (API_BASE_URL, SUPABASE_URL, SUPABASE_ANON_KEY,
SUPABASE_SERVICE_ROLE_KEY, TEST_VALID_EMAIL, ...), an optional --config file, and flags.
Tests that need a setting that is not provided are skipped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindConfigFlags(v, cmd.Root().PersistentFlags())
		},
	}
	addConfigFlags(root.PersistentFlags(), params)

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the test suite (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTests(cmd.Context(), params, v, out)
		},
	}
	addRunFlags(run.Flags(), params)

	// Running the bare command runs the tests with the same flags.
	addRunFlags(root.Flags(), params)
	root.Args = cobra.NoArgs
	root.RunE = run.RunE

	root.AddCommand(run, newConfigCommand(params, v, out), newMockBackendCommand(out))
	return root
}

func newConfigCommand(params *commandParams, v *viper.Viper, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(v, params.configFile)
			if err != nil {
				return err
			}
			rendered, err := cfg.ToTOML()
			if err != nil {
				return fmt.Errorf("rendering configuration: %w", err)
			}
			fmt.Fprint(out, rendered)
			fmt.Fprintf(out, "\n# capabilities: %v\n", cfg.Capabilities().Sorted())
			return nil
		},
	}
}

func runTests(ctx context.Context, params *commandParams, v *viper.Viper, out io.Writer) error {
	cfg, err := config.Load(v, params.configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: params.logLevel, Development: params.debugAll})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Sugar().Debugw("configuration loaded", "capabilities", cfg.Capabilities().Sorted())

	session := framework.NewSession(framework.SessionOptions{Timeout: cfg.RequestTimeout})
	defer session.Close()

	if cfg.AwaitServiceTimeout > 0 {
		for _, endpoint := range cfg.Endpoints() {
			if err := session.AwaitReachable(ctx, endpoint, cfg.AwaitServiceTimeout, out); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters, cfg.Capabilities(), config.AllCapabilities)
	bothContracts := cfg.Capabilities().HasAll(config.CapabilityCurrentContract, config.CapabilityLegacyContract)
	if bothContracts {
		fmt.Fprintf(out, "%s\n\n", bothContractsNote)
	}
	fmt.Fprintln(out, "Running test suite")

	testLogger := &ConsoleTestLogger{
		Out:                  out,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	results := apitests.RunTestSuite(ctx, apitests.SuiteOptions{
		Config:     cfg,
		Session:    session,
		Logger:     logger,
		Filter:     params.filters.AsFilter,
		TestLogger: testLogger,
	})

	fmt.Fprintln(out)
	framework.PrintResults(out, results)
	logger.Info("test run finished",
		zap.Int("tests", len(results.Tests)),
		zap.Int("failures", len(results.Failures)),
		zap.Int("skipped", len(results.Skipped)),
		zap.Int("warnings", len(results.Warnings)),
	)
	if !results.OK() {
		if bothContracts {
			fmt.Fprintf(out, "\n%s\n", bothContractsNote)
		}
		fmt.Fprintf(out, "\nTo rerun the failed tests:\n  %s\n", rerunCommand(os.Args[0], params, results.Failures))
		return errTestsFailed
	}
	return nil
}

func newMockBackendCommand(out io.Writer) *cobra.Command {
	var (
		port          int
		legacy        bool
		paymentStatus int
		opts          mockbackend.Options
		seedEmail     string
		seedPassword  string
	)
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve a fake deployment that the test suite can be pointed at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if legacy {
				opts.Contract = mockbackend.LegacyContract
			}
			opts.PaymentLookupStatus = paymentStatus
			opts.Logger = framework.LoggerFunc(func(message string, args ...interface{}) {
				fmt.Fprintf(out, message+"\n", args...)
			})
			backend := mockbackend.New(opts)

			listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
			if err != nil {
				return err
			}
			baseURL := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
			cfg := backend.Config(baseURL, seedEmail, seedPassword)
			fmt.Fprintf(out, "Mock backend (%s contract) listening on %s\n\n", opts.Contract, baseURL)
			fmt.Fprintf(out, "  export API_BASE_URL=%s\n", cfg.BaseURL)
			fmt.Fprintf(out, "  export SUPABASE_URL=%s\n", cfg.PlatformURL)
			fmt.Fprintf(out, "  export SIGNUP_URL=%s\n", cfg.SignupURL)
			fmt.Fprintf(out, "  export SUPABASE_ANON_KEY=%s\n", opts.AnonKey)
			fmt.Fprintf(out, "  export SUPABASE_SERVICE_ROLE_KEY=%s\n", opts.ServiceKey)
			fmt.Fprintf(out, "  export TEST_VALID_EMAIL=%s TEST_VALID_PASSWORD=%s\n", seedEmail, seedPassword)
			fmt.Fprintf(out, "  export CONFIRMED_USER_EMAIL=%s AUTH_CONTRACT=%s\n\n", cfg.ConfirmedUserEmail, cfg.AuthContract)

			server := &http.Server{Handler: backend, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&port, "port", defaultMockPort, "port to listen on")
	fs.BoolVar(&legacy, "legacy", false, "use the legacy auth error contract")
	fs.IntVar(&paymentStatus, "payment-status", http.StatusNotFound, "status returned for payment webhook events")
	fs.StringVar(&opts.AnonKey, "anon-key", "mock-anon-key", "anon key accepted by the fake auth API")
	fs.StringVar(&opts.ServiceKey, "service-key", "mock-service-key", "service key accepted by the fake admin API")
	fs.StringVar(&seedEmail, "valid-email", "valid@example.com", "e-mail of the pre-registered user")
	fs.StringVar(&seedPassword, "valid-password", "Valid#Password1", "password of the pre-registered user")
	return cmd
}
