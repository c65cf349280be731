package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func NewStaffCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage the support staff roster",
	}
	cmd.AddCommand(newStaffSetCommand(opts), newStaffListCommand(opts))
	return cmd
}

func newStaffSetCommand(opts *RootOptions) *cobra.Command {
	var name string
	var active bool

	cmd := &cobra.Command{
		Use:   "set <userId>",
		Short: "Add a staff member or change their availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgresSupport(pool).Directory.SetStaff(cmd.Context(), args[0], name, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", args[0], active)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&active, "active", true, "eligible for auto-assignment")
	return cmd
}

func newStaffListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			staff, err := postgresSupport(pool).Directory.Staff(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tNAME\tACTIVE\tLAST ASSIGNED")
			for _, s := range staff {
				last := "never"
				if s.LastAssignedAt != nil {
					last = humanize.Time(*s.LastAssignedAt)
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", s.UserID, s.DisplayName, s.Active, last)
			}
			return w.Flush()
		},
	}
}
