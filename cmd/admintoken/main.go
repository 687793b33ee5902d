// Command admintoken mints a bearer token for the /api admin routes.
//
//	admintoken --subject ops --ttl 2h
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sifan077/clickhook/config"
	"github.com/sifan077/clickhook/internal/http/util"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "admintoken:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	subject := fs.StringP("subject", "s", "admin", "subject recorded in the token")
	ttl := fs.Duration("ttl", 0, "token lifetime (defaults to server.admin_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lifetime := cfg.Server.AdminTokenTTL
	if fs.Changed("ttl") {
		lifetime = *ttl
	}

	token, err := util.NewTokenSigner([]byte(cfg.Server.AdminSecret), lifetime).Issue(*subject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
