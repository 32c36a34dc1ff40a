package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func buildSendCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message and print the assistant's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text := strings.Join(args, " ")

			s, err := openSession(ctx, flags, func(delta string) {
				fmt.Fprint(cmd.OutOrStdout(), delta)
			})
			if err != nil {
				return err
			}

			if _, err := s.send(ctx, text); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	return cmd
}
