package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/gobeaver/resfs"
	_ "github.com/gobeaver/resfs/driver/azure"
	_ "github.com/gobeaver/resfs/driver/billy"
	_ "github.com/gobeaver/resfs/driver/gcs"
	_ "github.com/gobeaver/resfs/driver/local"
	_ "github.com/gobeaver/resfs/driver/memory"
	_ "github.com/gobeaver/resfs/driver/s3"
	_ "github.com/gobeaver/resfs/driver/sftp"
	_ "github.com/gobeaver/resfs/driver/zip"
)

const registryKey = "registry"

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Reader:    stdin,
		Name:      "resfs",
		Usage:     "Inspects and edits resources addressed as entry_point:path",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file loaded before reading BEAVER_RESFS_* settings",
			},
			&cli.StringFlag{
				Name:    "mount-table",
				Aliases: []string{"t"},
				Usage:   "Mount table file (.toml, .yaml, .yml, .json or .cue)",
				EnvVars: []string{"BEAVER_RESFS_MOUNT_TABLE"},
			},
			&cli.StringSliceFlag{
				Name:    "mount",
				Aliases: []string{"m"},
				Usage:   "Extra mount as name=driver:root, e.g. res=local:./res",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); defaults to BEAVER_RESFS_LOG_LEVEL",
			},
		},
		Before: setupRegistry,
		Commands: []*cli.Command{
			{
				Name:     "mounts",
				Category: "Query",
				Usage:    "Lists mounted entry points",
				Action:   mountsAction,
			},
			{
				Name:     "drivers",
				Category: "Query",
				Usage:    "Lists the drivers mount tables can use",
				Action:   driversAction,
			},
			{
				Name:      "ls",
				Aliases:   []string{"list"},
				Category:  "Query",
				Usage:     "Lists a directory",
				ArgsUsage: "entry:dir",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Descend into subdirectories"},
					&cli.StringFlag{Name: "glob", Aliases: []string{"g"}, Usage: "Only show files whose name matches"},
					&cli.StringFlag{Name: "match", Usage: "Only show files whose relative path matches (supports **)"},
					&cli.BoolFlag{Name: "data", Usage: "Only show structured data files"},
				},
				Action: lsAction,
			},
			{
				Name:      "cat",
				Category:  "Query",
				Usage:     "Prints a file",
				ArgsUsage: "entry:file",
				Action:    catAction,
			},
			{
				Name:      "stat",
				Category:  "Query",
				Usage:     "Describes a file or directory",
				ArgsUsage: "entry:path",
				Action:    statAction,
			},
			{
				Name:      "decode",
				Category:  "Query",
				Usage:     "Decodes a structured data file and prints it",
				ArgsUsage: "entry:file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "json", Usage: "Output format (json, yaml)"},
				},
				Action: decodeAction,
			},
			{
				Name:      "mkdir",
				Category:  "Modify",
				Usage:     "Creates a directory and its parents",
				ArgsUsage: "entry:dir",
				Action:    mkdirAction,
			},
			{
				Name:      "write",
				Category:  "Modify",
				Usage:     "Writes standard input to a file",
				ArgsUsage: "entry:file",
				Action:    writeAction,
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Category:  "Modify",
				Usage:     "Removes a file or directory",
				ArgsUsage: "entry:path",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Remove directories and their contents"},
				},
				Action: rmAction,
			},
		},
		Suggest: true,
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})), nil
}

func setupRegistry(c *cli.Context) error {
	if file := c.String("env-file"); file != "" {
		if err := godotenv.Load(file); err != nil {
			return errors.Wrapf(err, "couldn't load env file %s", file)
		}
	}

	cfg, err := resfs.GetConfig()
	if err != nil {
		return errors.Wrap(err, "couldn't load configuration")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	logger, err := newLogger(c.App.ErrWriter, cfg.LogLevel)
	if err != nil {
		return err
	}
	if table := c.String("mount-table"); table != "" {
		cfg.MountTable = table
	}

	extra, err := parseMountFlags(c.StringSlice("mount"))
	if err != nil {
		return err
	}
	if len(extra) > 0 && cfg.MountTable == "" {
		// Explicit mounts replace the default one
		cfg.DefaultMount = ""
	}

	reg, err := resfs.New(cfg, resfs.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "couldn't set up mounts")
	}
	if err := reg.Apply(extra, cfg); err != nil {
		return errors.Wrap(err, "couldn't apply --mount flags")
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[registryKey] = reg
	return nil
}

// parseMountFlags parses name=driver:root values. A root of the form
// parent:path mounts a sub-device when driver is "sub".
func parseMountFlags(values []string) ([]resfs.MountSpec, error) {
	specs := make([]resfs.MountSpec, 0, len(values))
	for _, v := range values {
		name, rest, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("invalid --mount %q: expected name=driver:root", v)
		}
		driver, root, _ := strings.Cut(rest, ":")
		if driver == "" {
			return nil, errors.Errorf("invalid --mount %q: missing driver", v)
		}

		spec := resfs.MountSpec{Name: name, Driver: driver, Root: root}
		if driver == "sub" {
			spec.Driver = ""
			spec.Parent = resfs.NewPath(root).EntryPoint()
			if spec.Parent == "" {
				return nil, errors.Errorf("invalid --mount %q: sub mounts need parent:path", v)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func registry(c *cli.Context) *resfs.Registry {
	return c.App.Metadata[registryKey].(*resfs.Registry)
}

// pathArg returns the single address argument of a command.
func pathArg(c *cli.Context) (resfs.Path, error) {
	if c.Args().Len() != 1 {
		return resfs.Path{}, errors.Errorf("%s requires exactly one entry:path argument", c.Command.Name)
	}
	p := resfs.NewPath(c.Args().First())
	if !p.IsValid() {
		return p, errors.Errorf("%s is not an entry:path address", p)
	}
	return p, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
