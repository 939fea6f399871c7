package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"praxis-website/internal/auth"
	"praxis-website/internal/config"
)

func main() {
	// Parse command line arguments
	var configPath = flag.String("config", "config/config.yaml", "Path to the YAML configuration")
	var subject = flag.String("sub", "admin", "Token subject (who the token is for)")
	var expiry = flag.Duration("expiry", 0, "Token lifetime (default: auth.token_expiry_minutes)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lifetime := cfg.Auth.TokenExpiry()
	if *expiry > 0 {
		lifetime = *expiry
	}

	token, err := auth.NewTokens(cfg.Auth.JWTSecret, lifetime).Issue(*subject)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
	log.Printf("Token for %q valid until %s", *subject, time.Now().Add(lifetime).Format(time.RFC3339))
}
