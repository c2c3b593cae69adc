package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pspoerri/crstransform/internal/registry"
	"github.com/pspoerri/crstransform/internal/transform"
)

// app holds the state shared by all subcommands.
type app struct {
	cfg *viper.Viper
	log *logrus.Logger
	reg *registry.Registry

	logFile io.Closer
}

func newApp() *app {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return &app{cfg: viper.New(), log: log}
}

// option is one configuration setting. name is the viper key; the flag
// name replaces dots with dashes.
type option struct {
	name       string
	usage      string
	defaultVal any
}

var options = []option{
	{"config", "Path to a YAML configuration file.", ""},
	{"log.level", "Log level: trace, debug, info, warn, error.", "info"},
	{"log.format", "Log format: text or json.", "text"},
	{"log.file", "Write logs to this file instead of stderr, with rotation.", ""},
	{"log.max_size_mb", "Size in megabytes at which the log file is rotated.", 50},
	{"log.max_backups", "Number of rotated log files to keep.", 3},
	{"log.max_age_days", "Days to keep rotated log files.", 28},
	{"definitions.dirs", "Directories of <code>.wkt and <code>.prj definitions, searched before the built-in catalog.", []string{}},
	{"remote.url", "URL template for fetching EPSG definitions as WKT, with %s standing for the numeric code.", ""},
	{"remote.timeout", "Timeout for one remote definition fetch.", 10 * time.Second},
	{"remote.max_retries", "Retries for a failed remote definition fetch.", 3},
	{"transform.workers", "Goroutines used for large batches.", runtime.GOMAXPROCS(0)},
	{"transform.parallel_threshold", "Batch size from which work is split across workers.", transform.DefaultParallelThreshold},
}

func flagName(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

func (a *app) bindOptions(set *pflag.FlagSet) {
	for _, o := range options {
		name := flagName(o.name)
		switch v := o.defaultVal.(type) {
		case string:
			set.String(name, v, o.usage)
		case []string:
			set.StringSlice(name, v, o.usage)
		case int:
			set.Int(name, v, o.usage)
		case time.Duration:
			set.Duration(name, v, o.usage)
		default:
			panic(fmt.Sprintf("option %s: unsupported default %T", o.name, o.defaultVal))
		}
		a.cfg.SetDefault(o.name, o.defaultVal)
		if err := a.cfg.BindPFlag(o.name, set.Lookup(name)); err != nil {
			panic(fmt.Sprintf("option %s: %v", o.name, err))
		}
	}
	a.cfg.SetEnvPrefix("CRSTRANSFORM")
	a.cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.cfg.AutomaticEnv()
}

// setConfig reads the configuration file, if there is one.
func (a *app) setConfig() error {
	if path := a.cfg.GetString("config"); path != "" {
		a.cfg.SetConfigFile(path)
		if err := a.cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("reading configuration file: %w", err)
		}
	}
	return nil
}

func (a *app) setupLogging() error {
	level, err := logrus.ParseLevel(a.cfg.GetString("log.level"))
	if err != nil {
		return err
	}
	a.log.SetLevel(level)

	switch f := a.cfg.GetString("log.format"); f {
	case "text":
		a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		a.log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", f)
	}

	if name := a.cfg.GetString("log.file"); name != "" {
		lj := &lumberjack.Logger{
			Filename:   name,
			MaxSize:    a.cfg.GetInt("log.max_size_mb"),
			MaxBackups: a.cfg.GetInt("log.max_backups"),
			MaxAge:     a.cfg.GetInt("log.max_age_days"),
			LocalTime:  true,
		}
		a.log.SetOutput(lj)
		a.logFile = lj
	}
	return nil
}

// registry opens the definition registry on first use.
func (a *app) registry(ctx context.Context) (*registry.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}
	opts := registry.Options{
		Dirs: a.cfg.GetStringSlice("definitions.dirs"),
		Log:  a.log,
	}
	if url := a.cfg.GetString("remote.url"); url != "" {
		opts.Remote = &registry.RemoteConfig{
			URLTemplate: url,
			Timeout:     a.cfg.GetDuration("remote.timeout"),
			MaxRetries:  uint(a.cfg.GetInt("remote.max_retries")),
			Log:         a.log,
		}
	}
	reg, err := registry.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.reg = reg
	return reg, nil
}

func (a *app) transformOptions() transform.Options {
	return transform.Options{
		Workers:           a.cfg.GetInt("transform.workers"),
		ParallelThreshold: a.cfg.GetInt("transform.parallel_threshold"),
		Log:               a.log,
	}
}

func (a *app) close() {
	if a.reg != nil {
		if err := a.reg.Close(); err != nil {
			a.log.WithError(err).Warn("closing registry")
		}
		a.reg = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func newRoot(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "crstransform",
		Short: "Coordinate reference system lookup and transformation.",
		Long: `crstransform resolves CRS identifiers (EPSG codes, OGC URNs, aliases and
WKT definitions) and converts coordinates between them.

Configuration can be given in a YAML file (--config), on the command line,
or through environment variables named CRSTRANSFORM_<KEY>, where <KEY> is the
upper-cased setting with dots replaced by underscores, for example
CRSTRANSFORM_LOG_LEVEL=debug.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := a.setConfig(); err != nil {
				return err
			}
			return a.setupLogging()
		},
	}
	a.bindOptions(root.PersistentFlags())

	root.AddCommand(
		newTransformCmd(a),
		newInfoCmd(a),
		newParseCmd(a),
		newCodesCmd(a),
		newGeorefCmd(a),
		newVersionCmd(),
	)
	return root
}
