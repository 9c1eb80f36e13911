// docbridge exposes a document store through raw file descriptors.
//
// The subcommands drive the same bridge a native caller would use:
// queries, read and write descriptors, child listings, and a FUSE mount
// built on nothing else.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/s3fs-fuse/docbridge/internal/bridge"
	"github.com/s3fs-fuse/docbridge/internal/config"
	"github.com/s3fs-fuse/docbridge/internal/fuse"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errUsage marks a command line problem; the usage text is printed with it.
var errUsage = errors.New("usage")

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	flagSet := pflag.NewFlagSet("docbridge", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&a.configPath, "config", "c", "", "configuration file (default: "+config.GetDefaultConfigPath()+")")
	flagSet.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flagSet.Usage = func() { a.printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		a.printHelp(flagSet)
		return fmt.Errorf("%w: missing command", errUsage)
	}

	command, rest := rest[0], rest[1:]
	switch command {
	case "stat":
		return a.stat(rest)
	case "cat":
		return a.cat(rest)
	case "put":
		return a.put(rest)
	case "ls":
		return a.ls(rest)
	case "mount":
		return a.mount(rest)
	case "config":
		return a.configure(rest)
	case "help":
		a.printHelp(flagSet)
		return nil
	}
	a.printHelp(flagSet)
	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func (a *app) printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(a.stderr, `docbridge serves documents through raw file descriptors.

Usage:
  docbridge [flags] <command> [args]

Commands:
  stat <id>                 show whether a document exists, its kind and size
  cat <id>                  copy a document to stdout
  put [--append] <id>       write stdin to a document, creating it if missing
  ls <id>                   list the children of a directory
  mount <id> <mountpoint>   mount a directory through FUSE
  config init [path]        write a default configuration file

Identifiers look like [<tree>/document/]<path> with "/" in the path
encoded as %%2F, e.g. primary%%3Agames/document/primary%%3Agames%%2FSave01.lsd

Flags:
`)
	flagSet.PrintDefaults()
}

// session is a bridge plus everything that has to be released with it.
type session struct {
	bridge *bridge.Bridge
	logger *slog.Logger
	close  func() error
}

func (a *app) open() (*session, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(a.logLevel)
	}

	logger, closeLog, err := config.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, err
	}

	provider, err := config.NewProvider(cfg, logger)
	if err != nil {
		closeLog()
		return nil, err
	}

	s := &session{
		bridge: bridge.New(provider, logger),
		logger: logger,
		close:  closeLog,
	}
	if closer, ok := provider.(io.Closer); ok {
		// Object stores finish their uploads here
		s.close = func() error {
			return errors.Join(closer.Close(), closeLog())
		}
	}
	return s, nil
}

// withSession runs fn and folds the session's close error into its result.
func (a *app) withSession(fn func(ctx context.Context, s *session) error) (err error) {
	s, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(context.Background(), s)
}

func exactArgs(command string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, command, n, len(args))
	}
	return nil
}

func (a *app) stat(args []string) error {
	if err := exactArgs("stat", args, 1); err != nil {
		return err
	}
	return a.withSession(func(ctx context.Context, s *session) error {
		h := s.bridge.Resolve(ctx, args[0])

		kind := "missing"
		switch {
		case s.bridge.IsDirectory(ctx, h):
			kind = "directory"
		case s.bridge.IsFile(ctx, h):
			kind = "file"
		}
		fmt.Fprintf(a.stdout, "identifier: %s\n", h.Identifier())
		fmt.Fprintf(a.stdout, "exists:     %t\n", s.bridge.Exists(ctx, h))
		fmt.Fprintf(a.stdout, "kind:       %s\n", kind)
		fmt.Fprintf(a.stdout, "size:       %d\n", s.bridge.Size(ctx, h))
		return nil
	})
}

func (a *app) cat(args []string) error {
	if err := exactArgs("cat", args, 1); err != nil {
		return err
	}
	return a.withSession(func(ctx context.Context, s *session) error {
		fd, err := s.bridge.AcquireRead(ctx, s.bridge.Resolve(ctx, args[0]))
		if err != nil {
			return err
		}
		f := os.NewFile(uintptr(fd), args[0])
		defer f.Close()

		if _, err := io.Copy(a.stdout, f); err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		return nil
	})
}

func (a *app) put(args []string) error {
	flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
	flagSet.SetOutput(a.stderr)
	appendMode := flagSet.BoolP("append", "a", false, "append to the document instead of replacing it")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := exactArgs("put", flagSet.Args(), 1); err != nil {
		return err
	}
	id := flagSet.Arg(0)

	return a.withSession(func(ctx context.Context, s *session) error {
		h := s.bridge.Resolve(ctx, id)
		res, err := s.bridge.AcquireWrite(ctx, h, *appendMode)
		if err != nil {
			return err
		}
		f := os.NewFile(uintptr(res.Descriptor), id)

		n, err := io.Copy(f, a.stdin)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", id, err)
		}

		s.logger.Debug("wrote document", "id", res.Identifier, "bytes", n, "trace", res.Trace.String())
		if res.Identifier != h.Identifier() {
			fmt.Fprintf(a.stderr, "created as %s\n", res.Identifier)
		}
		return nil
	})
}

func (a *app) ls(args []string) error {
	if err := exactArgs("ls", args, 1); err != nil {
		return err
	}
	return a.withSession(func(ctx context.Context, s *session) error {
		entries, err := s.bridge.Enumerate(ctx, s.bridge.Resolve(ctx, args[0]))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir {
				fmt.Fprintf(a.stdout, "%s/\n", e.Name)
			} else {
				fmt.Fprintln(a.stdout, e.Name)
			}
		}
		return nil
	})
}

func (a *app) mount(args []string) error {
	if err := exactArgs("mount", args, 2); err != nil {
		return err
	}
	root, mountpoint := args[0], args[1]

	return a.withSession(func(ctx context.Context, s *session) error {
		if !s.bridge.IsDirectory(ctx, s.bridge.Resolve(ctx, root)) {
			return fmt.Errorf("%s is not a directory", root)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		filesystem := fuse.NewFilesystem(s.bridge, root, s.logger)
		s.logger.Info("mounting", "root", root, "mountpoint", mountpoint)
		return fuse.Mount(ctx, mountpoint, filesystem, s.logger)
	})
}

func (a *app) configure(args []string) error {
	if len(args) == 0 || args[0] != "init" {
		return fmt.Errorf("%w: config init [path] [--force]", errUsage)
	}

	flagSet := pflag.NewFlagSet("config init", pflag.ContinueOnError)
	flagSet.SetOutput(a.stderr)
	force := flagSet.BoolP("force", "f", false, "overwrite an existing file")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("%w: config init takes at most one path", errUsage)
	}

	path, err := config.InitConfig(flagSet.Arg(0), *force)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", path)
	return nil
}
