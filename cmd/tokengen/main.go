// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Command tokengen issues JWT bearer tokens for a Reelhub server running
// with AUTH_MODE=jwt. It reads the same configuration as the server, so
// JWT_SECRET (and optionally SESSION_TIMEOUT) must match.
//
//	JWT_SECRET=... tokengen --user alice
//	JWT_SECRET=... tokengen --user alice --ttl 720h
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/config"
)

type loadFunc func() (*config.Config, error)

func newRootCmd(load loadFunc) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:           "tokengen",
		Short:         "Issue a bearer token for the Reelhub API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			sec := cfg.Security
			if ttl > 0 {
				sec.SessionTimeout = ttl
			}
			mgr, err := auth.NewJWTManager(&sec)
			if err != nil {
				return err
			}

			token, err := mgr.GenerateToken(user)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user id the token is issued to (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; defaults to SESSION_TIMEOUT")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}
