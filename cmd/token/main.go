// Command token prints a signed bearer token for local testing.
//
//	go run ./cmd/token -user alice -role admin
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Shivanand-hulikatti/event-portal/internal/auth"
	"github.com/Shivanand-hulikatti/event-portal/internal/config"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
)

func main() {
	user := flag.String("user", "", "user id to put in the token subject")
	role := flag.String("role", string(model.RoleUser), "role claim: user or admin")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lifetime := cfg.JWTTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, lifetime)
	token, err := tokens.Issue(*user, model.Role(*role))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
}
