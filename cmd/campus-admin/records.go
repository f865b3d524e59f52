package main

import (
	"fmt"
	"strings"

	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/spf13/cobra"
)

func kindsHelp() string {
	kinds := make([]string, 0, len(schema.All()))
	for _, s := range schema.All() {
		kinds = append(kinds, s.Kind)
	}
	return strings.Join(kinds, ", ")
}

func listCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "Print the records of one kind (" + kindsHelp() + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, release, err := cc.openManager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer release()
			printJSON(cmd, m.Records())
			return nil
		},
	}
}

func deleteCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, release, err := cc.openManager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer release()
			if err := m.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.Status())
			return nil
		},
	}
}

func activateCommand(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <kind> <id>",
		Short: "Make one slide or poster the only active one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, release, err := cc.openManager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer release()
			if err := m.Activate(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.Status())
			return nil
		},
	}
}
