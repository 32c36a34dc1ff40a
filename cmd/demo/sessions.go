package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildSessionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or remove stored sessions",
	}
	cmd.AddCommand(buildSessionsListCmd(flags), buildSessionsRemoveCmd(flags))
	return cmd
}

func buildSessionsListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored session, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := buildStore(flags)
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, meta := range list {
				fmt.Fprintf(out, "%s\t%d messages\tupdated %s\n", meta.ID, meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func buildSessionsRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [session-id]",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := buildStore(flags)
			ok, err := store.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("demo: no such session %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
