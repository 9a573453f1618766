package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newHashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for use in authentication.*_password",
		Long:  "Hashes the password given as argument, or the first line of stdin.\nThe output can be pasted into bridge.yaml in place of a plain password.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pass string
			if len(args) == 1 {
				pass = args[0]
			} else {
				sc := bufio.NewScanner(cmd.InOrStdin())
				if sc.Scan() {
					pass = sc.Text()
				}
				if err := sc.Err(); err != nil {
					return fmt.Errorf("hash-password: read stdin: %w", err)
				}
			}
			pass = strings.TrimRight(pass, "\r\n")
			if pass == "" {
				return fmt.Errorf("hash-password: empty password")
			}
			h, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
			if err != nil {
				return fmt.Errorf("hash-password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(h))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
