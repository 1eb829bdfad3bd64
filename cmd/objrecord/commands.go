package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/objrecord/internal/auth"
	"github.com/nerrad567/objrecord/internal/infrastructure/config"
	"github.com/nerrad567/objrecord/internal/infrastructure/database"
)

// stdinPath selects standard input for ExecCmd.
const stdinPath = "-"

// loadConfig reads the configuration with load and applies the --database
// override.
func loadConfig(g Globals, load func(string) (*config.Config, error)) (*config.Config, error) {
	cfg, err := load(g.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.Database != "" {
		cfg.Database.Path = g.Database
	}
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.SQLiteAdapter, error) {
	db, err := database.Open(ctx, database.Config{
		Path:               cfg.Database.Path,
		Driver:             cfg.Database.Driver,
		WALMode:            cfg.Database.WALMode,
		BusyTimeout:        cfg.Database.BusyTimeout,
		ForeignKeys:        cfg.Database.ForeignKeys,
		StatementCacheSize: cfg.Database.StatementCacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// withDatabase runs fn against the configured database for one-shot
// commands, which tolerate a missing config file.
func withDatabase(rc *runContext, fn func(database.Adapter) error) (err error) {
	cfg, err := loadConfig(rc.globals, config.LoadOptional)
	if err != nil {
		return err
	}
	db, err := openDatabase(rc.ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()
	return fn(db)
}

// QueryCmd runs one statement and prints its rows.
type QueryCmd struct {
	SQL    string   `arg:"" name:"sql" help:"SQL statement; use ? or :name placeholders"`
	Params []string `arg:"" name:"param" optional:"" help:"Positional parameters; integers, reals and NULL are typed, anything else is text"`
}

// queryOutput is the JSON document printed by QueryCmd.
type queryOutput struct {
	Rows  []database.Row `json:"rows"`
	Count int            `json:"count"`
}

func (c *QueryCmd) Run(rc *runContext) error {
	params := make([]any, len(c.Params))
	for i, p := range c.Params {
		params[i] = parseParam(p)
	}

	return withDatabase(rc, func(db database.Adapter) error {
		rows, err := db.Query(rc.ctx, c.SQL, params...)
		if err != nil {
			return err
		}
		if rows == nil {
			rows = []database.Row{}
		}
		enc := json.NewEncoder(rc.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(queryOutput{Rows: rows, Count: len(rows)})
	})
}

// parseParam types a command-line parameter.
func parseParam(s string) database.Value {
	if strings.EqualFold(s, "null") {
		return database.Null()
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return database.Integer(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return database.Real(f)
	}
	return database.Text(s)
}

// ExecCmd runs a SQL script.
type ExecCmd struct {
	File string `arg:"" name:"file" help:"Script file, or - to read standard input"`
}

func (c *ExecCmd) Run(rc *runContext) error {
	var (
		script []byte
		err    error
	)
	if c.File == stdinPath {
		script, err = io.ReadAll(rc.stdin)
	} else {
		script, err = os.ReadFile(c.File)
	}
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	return withDatabase(rc, func(db database.Adapter) error {
		return db.ExecScript(rc.ctx, string(script))
	})
}

// ColumnsCmd prints a table's schema.
type ColumnsCmd struct {
	Table string `arg:"" name:"table" help:"Table name"`
}

func (c *ColumnsCmd) Run(rc *runContext) error {
	return withDatabase(rc, func(db database.Adapter) error {
		cols, err := db.TableInfo(rc.ctx, c.Table)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(rc.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tAFFINITY\tNOT NULL\tPK\tDEFAULT")
		for _, col := range cols {
			def := ""
			if !col.Default.IsNull() {
				def = col.Default.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n",
				col.Name, col.DeclaredType, col.Affinity, col.NotNull, col.PrimaryKey, def)
		}
		return tw.Flush()
	})
}

// TokenCmd mints an API bearer token signed with api.auth.jwt_secret.
type TokenCmd struct {
	Subject string        `arg:"" name:"subject" help:"Token subject (sub claim)"`
	TTL     time.Duration `name:"ttl" help:"Token lifetime; defaults to api.auth.token_ttl"`
}

func (c *TokenCmd) Run(rc *runContext) error {
	cfg, err := loadConfig(rc.globals, config.LoadOptional)
	if err != nil {
		return err
	}
	if cfg.API.Auth.JWTSecret == "" {
		return fmt.Errorf("api.auth.jwt_secret is not set: %w", auth.ErrNoSecret)
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = time.Duration(cfg.API.Auth.TokenTTL) * time.Minute
	}
	token, err := auth.GenerateAccessToken(c.Subject, cfg.API.Auth.JWTSecret, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rc.stdout, token)
	return err
}
