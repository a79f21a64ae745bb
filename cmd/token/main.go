// Command token prints a bearer token accepted by the API's JWT middleware,
// for exercising the tracking routes locally.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/auth"
	"github.com/Fabian12Florin/KeepUp/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		userID = fs.String("user-id", "", "subject of the token")
		secret = fs.String("secret", "", "JWT HMAC secret (HS256), defaults to JWT_SECRET")
		ttl    = fs.Duration("ttl", 2*time.Hour, "token lifetime")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *secret == "" {
		*secret = config.Load().JWTSecret
	}
	if *userID == "" || *secret == "" {
		fmt.Fprintln(stderr, "usage: token --user-id=<id> [--secret=<secret>] [--ttl=2h]")
		return 2
	}

	token, claims, err := auth.SignToken(*secret, *userID, *ttl)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintln(stdout, "TOKEN:")
	fmt.Fprintln(stdout, token)
	fmt.Fprintln(stdout, "\nCLAIMS:")
	fmt.Fprintf(stdout, "  sub: %s\n", claims.Subject)
	fmt.Fprintf(stdout, "  iat: %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(stdout, "  exp: %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	return 0
}
