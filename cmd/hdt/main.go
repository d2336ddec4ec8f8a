// Command hdt is the HTTP API documentor and tester's CLI (spec.md §6):
// gendoc emits a Swagger 2.0 document per virtual host, compile validates
// a project's descriptors and dependency graph without making any
// requests, and run executes the full dependency-ordered test tree
// against live virtual hosts.
//
// Grounded on cmd/wt/main.go's command dispatch pattern, replaced with
// cobra+pflag instead of the teacher's hand-rolled flag parsing, since
// cobra is better suited
// to this command's subcommand/flag shape and is exercised elsewhere in
// the example corpus.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/hdtest/internal/config"
	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
	"github.com/wondertwin-ai/hdtest/internal/httpclient"
	"github.com/wondertwin-ai/hdtest/internal/loader"
	"github.com/wondertwin-ai/hdtest/internal/planner"
	"github.com/wondertwin-ai/hdtest/internal/runtime"
	"github.com/wondertwin-ai/hdtest/internal/swagger"
	"github.com/wondertwin-ai/hdtest/internal/variable"
)

// Exit codes (spec.md §6): 0 success, 1 invalid CLI usage, 2 documentation
// generation failed, 3 the project's descriptors or dependency graph
// failed to compile, or (run only) one or more executed tests failed
// their contract — the scheme names no fifth code for that case, so run
// reports it the same way compile reports a broken plan.
const (
	exitOK      = 0
	exitUsage   = 1
	exitGenDoc  = 2
	exitCompile = 3
)

type rootFlags struct {
	indir      string
	outdir     string
	configFlag string
	varFlags   []string
	testsFlag  string
	logLevel   string
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run builds and executes the command tree, recovering from any panic
// that escapes a subcommand so the process always exits through the
// documented exit codes rather than a bare stack trace.
func run(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "hdt: internal error: %v\n", r)
			code = exitCompile
		}
	}()

	var flags rootFlags
	rootCmd := &cobra.Command{
		Use:   "hdt",
		Short: "Dependency-driven HTTP API documentor and tester",
	}
	rootCmd.PersistentFlags().StringVar(&flags.indir, "indir", ".", "project directory to load")
	rootCmd.PersistentFlags().StringVar(&flags.outdir, "outdir", ".", "directory to write output into")
	rootCmd.PersistentFlags().StringVar(&flags.configFlag, "config", "", "comma-separated YAML config files")
	rootCmd.PersistentFlags().StringArrayVar(&flags.varFlags, "var", nil, "NAME=VALUE variable override, repeatable")
	rootCmd.PersistentFlags().StringVar(&flags.testsFlag, "tests", "", "comma-separated test name prefixes to run")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "v", "v", false, "shorthand for -log trace")

	exitCode := exitOK
	rootCmd.AddCommand(
		gendocCmd(&flags, &exitCode),
		compileCmd(&flags, &exitCode),
		runCmd(&flags, &exitCode),
	)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hdt:", err)
		return exitUsage
	}
	return exitCode
}

func buildLogger(flags *rootFlags) *logrus.Logger {
	log := logrus.New()
	level := flags.logLevel
	if flags.verbose {
		level = "trace"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(config.ParseConfigPaths(flags.configFlag))
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ParseVarFlags(flags.varFlags, cfg.Vars); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func gendocCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "gendoc",
		Short: "Emit a Swagger 2.0 document per virtual host",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(flags)
			proj, err := loader.Load(flags.indir)
			if err != nil {
				*exitCode = exitGenDoc
				return err
			}
			if err := os.MkdirAll(flags.outdir, 0o755); err != nil {
				*exitCode = exitGenDoc
				return err
			}
			for _, name := range proj.VHosts.Names() {
				host, _ := proj.VHosts.Get(name)
				var descs []*descriptor.Descriptor
				for _, d := range proj.Descriptors {
					if d.VHost == name {
						descs = append(descs, d)
					}
				}
				doc, err := swagger.Build(host, descs)
				if err != nil {
					*exitCode = exitGenDoc
					return err
				}
				encoded, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					*exitCode = exitGenDoc
					return fmt.Errorf("encoding swagger document for %q: %w", name, err)
				}
				outPath := filepath.Join(flags.outdir, fmt.Sprintf("swagger-%s.json", name))
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					*exitCode = exitGenDoc
					return err
				}
				log.WithField("vhost", name).WithField("path", outPath).Info("wrote swagger document")
			}
			return nil
		},
	}
}

func compileCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Validate descriptors and the dependency graph without making requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(flags)
			_, _, _, err := buildPlan(flags, log)
			if err != nil {
				*exitCode = exitCompile
				return err
			}
			log.Info("compiled successfully")
			return nil
		},
	}
}

func runCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the full dependency-ordered test tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(flags)
			cfg, err := loadConfig(flags)
			if err != nil {
				*exitCode = exitUsage
				return err
			}

			proj, root, reg, err := buildPlan(flags, log)
			if err != nil {
				*exitCode = exitCompile
				return err
			}

			client, err := httpclient.New(cfg.DefaultTimeout)
			if err != nil {
				*exitCode = exitCompile
				return err
			}
			rc := runtime.New(client, proj.VHosts.BaseURLs(), nil, reg, log)

			// Seed the run environment with the resolved catalogue (the
			// same names the planner treated as predefined), then apply
			// -config/-var overrides on top.
			values, err := proj.Catalogue.Resolve()
			if err != nil {
				*exitCode = exitCompile
				return err
			}
			for k, v := range cfg.Vars {
				values[k] = v
			}
			env := envFromVars(values)
			ctx, cancel := context.WithTimeout(context.Background(), 24*time.Hour)
			defer cancel()

			res, err := rc.Execute(ctx, root, env)
			if err != nil {
				*exitCode = exitCompile
				return err
			}
			printResult(log, res, 0)
			if res.HasFailures() {
				// The scheme (spec.md §6) reserves no fifth code for a
				// contract failure discovered during run; it is reported
				// the same way a broken plan would be.
				*exitCode = exitCompile
				return nil
			}
			return nil
		},
	}
}

// buildPlan loads a project, expands every descriptor, and inserts the
// resulting concrete APIs into a fresh Planner, shared by compile and run.
func buildPlan(flags *rootFlags, log *logrus.Logger) (*loader.Project, *planner.Node, planner.Registry, error) {
	proj, err := loader.Load(flags.indir)
	if err != nil {
		return nil, nil, nil, hdterrors.Wrap(hdterrors.Load, flags.indir, err, "loading project")
	}
	apis, predefined, err := proj.ExpandAll()
	if err != nil {
		return nil, nil, nil, err
	}

	prefixes := config.ParseTestPrefixes(flags.testsFlag)
	apis = filterByPrefix(apis, prefixes)

	reg := planner.NewMapRegistry(apis)
	p := planner.New(reg, predefined)
	var errs hdterrors.List
	for _, api := range apis {
		if err := p.Insert(api); err != nil {
			errs.Add(hdterrors.Wrap(hdterrors.Compile, api.Name, err, "inserting %q into plan", api.Name))
		}
	}
	if errs.HasErrors() {
		return nil, nil, nil, &errs
	}
	log.WithField("count", len(apis)).Debug("plan built")
	return proj, p.Root, reg, nil
}

func filterByPrefix(apis []*descriptor.ConcreteAPI, prefixes []string) []*descriptor.ConcreteAPI {
	if len(prefixes) == 0 {
		return apis
	}
	var out []*descriptor.ConcreteAPI
	for _, api := range apis {
		for _, prefix := range prefixes {
			if len(api.Name) >= len(prefix) && api.Name[:len(prefix)] == prefix {
				out = append(out, api)
				break
			}
		}
	}
	return out
}

func envFromVars(vars map[string]string) *variable.Environment {
	return variable.NewEnvironment(vars)
}

func printResult(log *logrus.Logger, res *runtime.Result, depth int) {
	if res == nil {
		return
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	entry := log.WithField("status", res.Status)
	if res.Err != nil {
		entry.Errorf("%sFAIL %s: %v", indent, res.Name, res.Err)
	} else if res.Skipped {
		entry.Infof("%sSKIP %s", indent, res.Name)
	} else {
		entry.Infof("%sPASS %s", indent, res.Name)
	}
	if res.PreRun != nil {
		printResult(log, res.PreRun, depth+1)
	}
	for _, c := range res.Children {
		printResult(log, c, depth+1)
	}
	if res.PostRun != nil {
		printResult(log, res.PostRun, depth+1)
	}
}
