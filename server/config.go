package main

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
	WebhookURL  string
	// ListDeleteOwnerOnly restricts list deletion to the board creator.
	// List create/update and all card operations stay member-level.
	ListDeleteOwnerOnly bool
}

func (c *Config) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("ADDR"),
			Destination: &c.Addr,
		},
		&cli.StringFlag{
			Name:        "database-url",
			Usage:       "PostgreSQL connection URL",
			Value:       "postgres://postgres:postgres@db:5432/taskboard?sslmode=disable",
			Sources:     cli.EnvVars("DATABASE_URL"),
			Destination: &c.DatabaseURL,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "HMAC secret for signing access tokens",
			Sources:     cli.EnvVars("JWT_SECRET"),
			Destination: &c.JWTSecret,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Usage:       "access token lifetime",
			Value:       7 * 24 * time.Hour,
			Sources:     cli.EnvVars("TOKEN_TTL"),
			Destination: &c.TokenTTL,
		},
		&cli.StringFlag{
			Name:        "webhook-url",
			Usage:       "outbound chat webhook for activity notifications (empty disables)",
			Sources:     cli.EnvVars("WEBHOOK_URL"),
			Destination: &c.WebhookURL,
		},
		&cli.BoolFlag{
			Name:        "list-delete-owner-only",
			Usage:       "require board ownership to delete a list",
			Value:       true,
			Sources:     cli.EnvVars("LIST_DELETE_OWNER_ONLY"),
			Destination: &c.ListDeleteOwnerOnly,
		},
	}
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return goerr.New("JWT_SECRET is required")
	}
	return nil
}
