// Command admin-token mints an operator bearer token for the admin license and analytics routes.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/shubra2641/liceinc/internal/infra/config"
	"github.com/shubra2641/liceinc/internal/infra/security"
)

func main() {
	subject := flag.String("subject", "", "operator identity recorded with status changes")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to admin.token_ttl")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Admin.JWTSecret == "" {
		log.Fatal("admin.jwt_secret is not configured")
	}
	if *subject == "" {
		log.Fatal("-subject is required")
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Admin.TokenTTL
	}
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	token, err := security.NewAdminTokenManager(cfg.Admin.JWTSecret, cfg.Admin.Issuer).Issue(*subject, lifetime)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Println(token)
}
