// Command admintoken mints a bearer token for the wallet admin API.
//
//	admintoken --admin-id 6f0c... --role admin
//
// The signing secret, issuer and default expiry come from the same
// configuration as the API server (config.yaml or WLE_* variables).
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"business-wallet-engine/config"
	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to config.yaml")
	adminID := fs.String("admin-id", "", "principal UUID (random when empty)")
	role := fs.String("role", domain.RoleAdmin, "role claim: admin or service")
	expiry := fs.Duration("expiry", 0, "token lifetime (defaults to jwt.expiry)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not configured")
	}

	id := uuid.New()
	if *adminID != "" {
		if id, err = uuid.Parse(*adminID); err != nil {
			return fmt.Errorf("invalid --admin-id: %w", err)
		}
	}

	lifetime := cfg.JWT.Expiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, lifetime, cfg.JWT.Issuer).Generate(id, *role)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "admin_id:   %s\nrole:       %s\nexpires_at: %s\n\n%s\n", id, *role, expiresAt.UTC().Format(time.RFC3339), token)
	return nil
}
