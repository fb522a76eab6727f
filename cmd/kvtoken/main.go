// Command kvtoken mints a bearer token for the write routes of a server
// started with KV_AUTH_SECRET.
//
//	KV_AUTH_SECRET=... kvtoken [-client loadgen] [-ttl 24h]
package main

import (
	"flag"
	"fmt"

	"kvstore-api/internal/auth"
	"kvstore-api/internal/config"
)

func main() {
	clientID := flag.String("client", "kvclient", "client id placed in the token")
	ttl := flag.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("%v", err)
	}
	if !cfg.AuthEnabled() {
		config.Exitf("KV_AUTH_SECRET is not set")
	}

	issuer, err := auth.NewIssuer(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthAudience)
	if err != nil {
		config.Exitf("%v", err)
	}
	token, err := issuer.GenerateToken(*clientID, *ttl)
	if err != nil {
		config.Exitf("generate token: %v", err)
	}
	fmt.Println(token)
}
