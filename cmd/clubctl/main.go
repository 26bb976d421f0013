// Command clubctl renders documents and administers a clubhouse deployment.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"clubhouse/api/internal/app"
	"clubhouse/api/internal/auth"
	"clubhouse/api/internal/authpw"
	"clubhouse/api/internal/config"
	"clubhouse/api/internal/logging"
	"clubhouse/api/internal/mcptools"
	"clubhouse/api/internal/rbac"
	"clubhouse/api/internal/revision"
	"clubhouse/api/internal/store"
	"clubhouse/api/internal/util"
)

var version = "dev"

// Globals are flags shared by every command. Logs go to stderr so stdout stays
// clean for rendered output and the stdio MCP transport.
type Globals struct {
	LogLevel  string `name:"log-level" default:"warn" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"console" enum:"json,console" help:"Log format"`

	stdin  io.Reader
	stdout io.Writer
}

func (g *Globals) logger() (*zap.Logger, error) {
	return logging.New(g.LogLevel, g.LogFormat)
}

func (g *Globals) in() io.Reader {
	if g.stdin == nil {
		return os.Stdin
	}
	return g.stdin
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

// CLI defines the command-line interface for clubctl.
type CLI struct {
	Globals

	Render        RenderCmd        `cmd:"" help:"Render a document JSON file to html, markdown or text"`
	Token         TokenCmd         `cmd:"" help:"Issue a bearer token"`
	HashPassword  HashPasswordCmd  `cmd:"" name:"hash-password" help:"Print a bcrypt hash for a password"`
	CreateAccount CreateAccountCmd `cmd:"" name:"create-account" help:"Create or update an account"`
	Migrate       MigrateCmd       `cmd:"" help:"Apply database migrations"`
	MCP           MCPCmd           `cmd:"" name:"mcp" help:"Serve the render tools over stdio MCP"`
	Version       VersionCmd       `cmd:"" help:"Print version information"`
}

// RenderCmd renders a document without a database. References that are not
// embedded in the document render through the unresolved fallback.
type RenderCmd struct {
	File         string `arg:"" optional:"" help:"Document JSON file; stdin when omitted or '-'"`
	Format       string `short:"f" default:"html" enum:"html,markdown,text" help:"Output format"`
	Profile      string `help:"Render profile YAML file" type:"path"`
	MediaBaseURL string `name:"media-base-url" help:"Base URL joined to relative media URLs"`
	Output       string `short:"o" help:"Write to this file instead of stdout" type:"path"`
}

func (c *RenderCmd) Run(g *Globals) error {
	logger, err := g.logger()
	if err != nil {
		return err
	}
	profiles, err := config.NewProfileWatcher(c.Profile, os.Getenv, logger)
	if err != nil {
		return err
	}

	var data []byte
	if c.File == "" || c.File == "-" {
		data, err = io.ReadAll(g.in())
	} else {
		data, err = os.ReadFile(c.File)
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	service := app.New(config.Config{}, app.Dependencies{Profiles: profiles, Logger: logger})
	out, err := service.RenderDocument(context.Background(), data, c.Format, c.MediaBaseURL)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if c.Output != "" {
		return os.WriteFile(c.Output, []byte(out), 0o644)
	}
	_, err = io.WriteString(g.out(), out)
	return err
}

// TokenCmd issues a token signed with the API's token secret.
type TokenCmd struct {
	UserID string        `name:"user-id" help:"Account id (generated when omitted)"`
	Name   string        `required:"" help:"Display name carried in the token"`
	Role   string        `default:"editor" enum:"member,editor,admin" help:"Role carried in the token"`
	TTL    time.Duration `default:"12h" help:"Token lifetime"`
	Secret string        `env:"CLUBHOUSE_TOKEN_SECRET" default:"clubhouse-dev-secret" help:"Token signing secret"`
}

func (c *TokenCmd) Run(g *Globals) error {
	userID := c.UserID
	if userID == "" {
		userID = util.NewID("acc")
	}
	token, err := auth.IssueToken([]byte(c.Secret), auth.NewClaims(userID, c.Name, string(rbac.Normalize(c.Role)), c.TTL, time.Now()))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out(), token)
	return err
}

type HashPasswordCmd struct {
	Password string `arg:"" optional:"" help:"Password to hash; first stdin line when omitted"`
}

func (c *HashPasswordCmd) Run(g *Globals) error {
	password := c.Password
	if password == "" {
		line, err := readLine(g.in())
		if err != nil {
			return err
		}
		password = line
	}
	if len(password) < authpw.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", authpw.MinPasswordLength)
	}
	hash, err := authpw.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out(), hash)
	return err
}

type CreateAccountCmd struct {
	Email       string `required:"" help:"Sign-in email"`
	DisplayName string `name:"display-name" required:"" help:"Name shown on revisions"`
	Role        string `default:"editor" enum:"member,editor,admin" help:"Account role"`
	Password    string `env:"CLUBHOUSE_ACCOUNT_PASSWORD" help:"Password; first stdin line when unset"`
	DatabaseURL string `name:"database-url" env:"DATABASE_URL" required:"" help:"PostgreSQL connection URL"`
}

func (c *CreateAccountCmd) Run(g *Globals) error {
	password := c.Password
	if password == "" {
		line, err := readLine(g.in())
		if err != nil {
			return err
		}
		password = line
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := store.OpenWithPool(ctx, c.DatabaseURL, store.ToolPool)
	if err != nil {
		return err
	}
	defer db.Close()

	account, err := authpw.NewService(store.NewPostgresStore(db)).CreateAccount(ctx, authpw.CreateAccountRequest{
		Email:       c.Email,
		Password:    password,
		DisplayName: c.DisplayName,
		Role:        c.Role,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(g.out(), "%s\t%s\t%s\n", account.ID, account.Email, account.Role)
	return err
}

type MigrateCmd struct {
	DatabaseURL string `name:"database-url" env:"DATABASE_URL" required:"" help:"PostgreSQL connection URL"`
	Dir         string `env:"CLUBHOUSE_MIGRATIONS_DIR" help:"Read migrations from this directory instead of the embedded schema"`
	Down        bool   `help:"Revert every applied migration"`
}

func (c *MigrateCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db, err := store.OpenWithPool(ctx, c.DatabaseURL, store.ToolPool)
	if err != nil {
		return err
	}
	defer db.Close()
	source := store.MigrationSource(c.Dir)
	if c.Down {
		if err := store.RevertMigrations(ctx, db, source); err != nil {
			return err
		}
		_, err = fmt.Fprintln(g.out(), "migrations reverted")
		return err
	}
	if err := store.ApplyMigrations(ctx, db, source); err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out(), "migrations applied")
	return err
}

// MCPCmd serves render_document and get_page over stdio.
type MCPCmd struct {
	DatabaseURL  string `name:"database-url" env:"DATABASE_URL" required:"" help:"PostgreSQL connection URL"`
	ReposDir     string `name:"repos-dir" env:"CLUBHOUSE_REPOS_DIR" default:"./data/repos" help:"Revision repositories directory"`
	Profile      string `env:"CLUBHOUSE_RENDER_PROFILE" help:"Render profile YAML file" type:"path"`
	MediaBaseURL string `name:"media-base-url" env:"MEDIA_BASE_URL" help:"Base URL joined to relative media URLs"`
}

func (c *MCPCmd) Run(g *Globals) error {
	logger, err := g.logger()
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := store.Open(ctx, c.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	profiles, err := config.NewProfileWatcher(c.Profile, os.Getenv, logger)
	if err != nil {
		return err
	}
	service := app.New(config.Config{MediaBaseURL: c.MediaBaseURL}, app.Dependencies{
		Store:     store.NewPostgresStore(db),
		Revisions: revision.New(c.ReposDir),
		Profiles:  profiles,
		Logger:    logger,
	})
	logger.Info("serving MCP over stdio")
	return server.ServeStdio(mcptools.NewServer(service, version, logger))
}

type VersionCmd struct{}

func (VersionCmd) Run(g *Globals) error {
	_, err := fmt.Fprintf(g.out(), "clubctl %s\n", version)
	return err
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given")
	}
	return line, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("clubctl"),
		kong.Description("Clubhouse page renderer and admin tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
