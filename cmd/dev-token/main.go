// dev-token signs a bearer token for local testing of the authenticated
// endpoints. It uses the same API_SECRET and TOKEN_HOUR_LIFESPAN as the server
// and refuses to run with GO_ENV=production.
//
// Usage:
//
//	API_SECRET=... go run ./cmd/dev-token -user-id 1 -role admin
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
)

var errProduction = errors.New("dev-token is disabled when GO_ENV=production")

func issueToken(args []string, goEnv string, out io.Writer) error {
	if strings.EqualFold(strings.TrimSpace(goEnv), "production") {
		return errProduction
	}

	fs := flag.NewFlagSet("dev-token", flag.ContinueOnError)
	userId := fs.Int("user-id", 0, "Required: user id placed in the token")
	role := fs.String("role", "admin", "Role claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userId <= 0 {
		return errors.New("-user-id must be positive")
	}
	if strings.TrimSpace(*role) == "" {
		return errors.New("-role must not be blank")
	}

	token, err := utils.JwtGenerate(*userId, strings.TrimSpace(*role))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Bearer %s\n", token)
	return err
}

func main() {
	if err := issueToken(os.Args[1:], os.Getenv("GO_ENV"), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
}
