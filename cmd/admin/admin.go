package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func newAddCmd(flags *globalFlags, open opener) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create one admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := obtainPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwordStdin)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			return withAdmins(cmd.Context(), flags, open, func(svc admins) error {
				created, err := svc.CreateAdmin(cmd.Context(), args[0], string(password))
				if errors.Is(err, common.ErrorAlreadyExists) {
					return fmt.Errorf("admin %q already exists", args[0])
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if flags.jsonOutput {
					return writeJSON(out, map[string]any{
						"id":       created.ID,
						"username": created.Username,
						"role":     created.Role,
					})
				}
				_, err = fmt.Fprintf(out, "created admin %s (%s)\n", created.Username, created.ID)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}

func newCountCmd(flags *globalFlags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many admin accounts exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmins(cmd.Context(), flags, open, func(svc admins) error {
				n, err := svc.CountAdmins(cmd.Context())
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"count": n})
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
}

// obtainPassword reads the password from in when fromStdin is set and
// otherwise prompts twice on the terminal.
func obtainPassword(in io.Reader, prompt io.Writer, fromStdin bool) ([]byte, error) {
	if fromStdin {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, err
		}
		pw := bytes.TrimSpace(b)
		if len(pw) == 0 {
			return nil, errors.New("empty password on stdin")
		}
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return nil, errors.New("stdin is not a terminal; use --password-stdin")
	}

	fmt.Fprint(prompt, "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, err
	}

	fmt.Fprint(prompt, "Repeat password: ")
	again, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pw, again) {
		common.WipeByteArray(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
