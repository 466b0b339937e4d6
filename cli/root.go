package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/emailbison/bison"
	"github.com/randalmurphal/emailbison/config"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
	bisonhttp "github.com/randalmurphal/emailbison/http"
	"github.com/randalmurphal/emailbison/output"
)

// Options wires one run of the command tree to its environment.
type Options struct {
	Args   []string
	Stdout io.Writer
	Stderr io.Writer

	// LookupEnv reads the environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// ConfigPaths overrides the config file search list.
	ConfigPaths []string

	// Now supplies the current time for date defaults.
	Now func() time.Time

	// RetryWaitMin and RetryWaitMax override the client backoff bounds
	// when non-zero.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// app holds the state of one invocation. Settings are resolved at most
// once and shared by every call the command makes.
type app struct {
	opts    Options
	global  globalFlags
	printer *output.Printer
	logger  *slog.Logger

	started  bool
	settings *config.Settings
}

// Execute runs the command line of the current process and returns the
// exit code.
func Execute(ctx context.Context) int {
	return Run(ctx, Options{
		Args:   os.Args[1:],
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
}

// Run executes the command tree with opts and returns the exit code.
func Run(ctx context.Context, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &app{opts: opts}
	root := a.rootCommand()
	root.SetArgs(opts.Args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return bisonerrors.ExitOK
	}

	if !a.started && bisonerrors.KindOf(err) == bisonerrors.KindUnexpected {
		// Flag and argument parsing failed before any command ran.
		err = usageError(err)
	}
	if a.printer == nil {
		a.printer = output.New(opts.Stdout, opts.Stderr, output.FormatHuman)
		if !isFile(opts.Stderr) {
			a.printer.DisableColor()
		}
	}
	a.printer.Error(err)
	return bisonerrors.ExitCode(err)
}

func usageError(err error) error {
	var e *bisonerrors.Error
	if errors.As(err, &e) {
		return err
	}
	u := bisonerrors.New(bisonerrors.KindValidation, err.Error())
	u.Suggestion = "Run with --help for usage."
	u.Err = err
	return u
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "emailbison",
		Short:         "Create and manage EmailBison campaigns",
		Long:          "emailbison drives the EmailBison API: campaigns, sequences, sender emails and leads.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	a.global.register(root.PersistentFlags())

	root.AddCommand(
		a.campaignCommand(),
		a.senderEmailsCommand(),
		a.configCommand(),
	)
	return root
}

// setup runs before every command: output format, logging and printer.
func (a *app) setup(_ *cobra.Command) error {
	a.started = true

	format, err := a.global.format()
	if err != nil {
		return err
	}
	a.printer = output.New(a.opts.Stdout, a.opts.Stderr, format)
	if a.global.noColor || !isFile(a.opts.Stderr) {
		a.printer.DisableColor()
	} else if _, ok := a.opts.LookupEnv("NO_COLOR"); ok {
		a.printer.DisableColor()
	}

	level := slog.LevelInfo
	if a.global.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.opts.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func isFile(w io.Writer) bool {
	_, ok := w.(*os.File)
	return ok
}

func (a *app) newResolver() *config.Resolver {
	return config.NewResolver(config.ResolverConfig{
		ConfigPaths:  a.opts.ConfigPaths,
		ExplicitPath: a.global.configPath,
		LookupEnv:    a.opts.LookupEnv,
		Logger:       a.logger,
	})
}

// sources gathers the configuration layers and registers every token they
// carry for redaction.
func (a *app) sources(r *config.Resolver) (config.Sources, error) {
	src, err := r.Sources(a.global.layer())
	if err != nil {
		return config.Sources{}, err
	}
	for _, w := range r.Warnings {
		a.printer.Warn("%s", w)
	}
	for _, l := range []config.Layer{src.Flags, src.Env, src.File} {
		if tok, ok := l.Get(config.KeyAPIToken); ok {
			a.printer.AddSecret(tok)
		}
	}
	return src, nil
}

// resolve builds Settings once per invocation.
func (a *app) resolve() (*config.Settings, error) {
	if a.settings != nil {
		return a.settings, nil
	}
	src, err := a.sources(a.newResolver())
	if err != nil {
		return nil, err
	}
	s, err := config.Resolve(src)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("settings resolved",
		"base_url", s.BaseURL,
		"api_token", s.APIToken,
		"timeout_seconds", s.TimeoutSeconds,
		"retries", s.Retries,
	)
	a.settings = &s
	return a.settings, nil
}

// client builds the API over a resilient HTTP client.
func (a *app) client() (*bison.API, *config.Settings, error) {
	s, err := a.resolve()
	if err != nil {
		return nil, nil, err
	}
	opts := []bisonhttp.Option{bisonhttp.WithLogger(a.logger)}
	if a.opts.RetryWaitMin > 0 || a.opts.RetryWaitMax > 0 {
		opts = append(opts, bisonhttp.WithRetryWait(a.opts.RetryWaitMin, a.opts.RetryWaitMax))
	}
	return bison.New(bisonhttp.NewClient(s, opts...), bison.PathsFrom(*s)), s, nil
}

// printResponse renders a response body, or msg on stderr in human mode
// when msg is set.
func (a *app) printResponse(resp *bisonhttp.Response, msg string) error {
	if msg != "" && !a.printer.Format().Structured() {
		a.printer.Success("%s", msg)
		return nil
	}
	return a.printer.Print(resp.Data)
}
