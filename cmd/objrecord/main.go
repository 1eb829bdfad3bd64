// objrecord - object-record mapping over an embedded SQL database
//
// This is the command-line entry point. It serves the HTTP inspection API
// and change stream, and offers one-shot commands for querying a database,
// running SQL scripts, describing tables and minting API tokens.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// CLI defines the command-line interface for objrecord.
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Serve the inspection API and record change stream"`
	Query   QueryCmd   `cmd:"" help:"Run one SQL statement and print the rows as JSON"`
	Exec    ExecCmd    `cmd:"" help:"Run a SQL script from a file (- for stdin)"`
	Columns ColumnsCmd `cmd:"" help:"Describe the columns of a table"`
	Token   TokenCmd   `cmd:"" help:"Mint a bearer token for the API"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `name:"config" short:"c" help:"Configuration file" env:"OBJRECORD_CONFIG" default:"${config_path}" type:"path"`
	Database string `name:"database" short:"d" help:"Database file, overriding database.path" type:"path"`
}

// runContext is bound into every command's Run method.
type runContext struct {
	ctx     context.Context
	globals Globals
	stdout  io.Writer
	stdin   io.Reader
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command, separated from main
// for testability.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("objrecord"),
		kong.Description("Object-record mapping over an embedded SQL database"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(stdout, stderr),
		kong.Vars{"config_path": defaultConfigPath},
	)
	if err != nil {
		return fmt.Errorf("building command line: %w", err)
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kctx.Run(&runContext{
		ctx:     ctx,
		globals: cli.Globals,
		stdout:  stdout,
		stdin:   stdin,
	})
}

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run(rc *runContext) error {
	_, err := fmt.Fprintf(rc.stdout, "objrecord %s (commit %s, built %s)\n", version, commit, date)
	return err
}
