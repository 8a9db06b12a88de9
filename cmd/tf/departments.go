package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
)

func departmentCmd() *cobra.Command {
	dept := &cobra.Command{Use: "dept", Aliases: []string{"department"}, Short: "Manage departments"}
	dept.AddCommand(departmentCreateCmd())
	dept.AddCommand(departmentUpdateCmd())
	dept.AddCommand(departmentDeleteCmd())
	dept.AddCommand(departmentShowCmd())
	dept.AddCommand(departmentListCmd())
	dept.AddCommand(departmentMemberCmd("add-member", "Add a user to a department"))
	dept.AddCommand(departmentMemberCmd("remove-member", "Remove a user from a department"))
	return dept
}

func departmentCreateCmd() *cobra.Command {
	var (
		name    string
		userIDs []int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDepartment(ctx, name, userIDs, actorID())
				if err != nil {
					return err
				}
				return printDepartments([]domain.Department{d})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "department name")
	cmd.Flags().Int64SliceVar(&userIDs, "user-id", nil, "member user ids")
	return cmd
}

func departmentUpdateCmd() *cobra.Command {
	var (
		name    string
		userIDs []int64
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a department or synchronize its members",
		Long:  "Members are synchronized to --user-id when given; without it membership is left unchanged.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid department id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.UpdateDepartment(ctx, engine.DepartmentUpdateOptions{
					ID:      id,
					Name:    stringFlag(cmd, "name", name),
					UserIDs: userIDs,
					ActorID: actorID(),
				})
				if err != nil {
					return err
				}
				return printDepartments([]domain.Department{d})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().Int64SliceVar(&userIDs, "user-id", nil, "member user ids")
	return cmd
}

func departmentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a department with no members and no tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid department id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteDepartment(ctx, id, actorID())
			})
		},
	}
}

func departmentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid department id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetDepartment(ctx, id)
				if err != nil {
					return err
				}
				return printDepartments([]domain.Department{d})
			})
		},
	}
}

func departmentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDepartments(ctx)
				if err != nil {
					return err
				}
				return printDepartments(items)
			})
		},
	}
}

func departmentMemberCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <department-id> <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deptID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid department id %q", args[0])
			}
			userID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[1])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if use == "add-member" {
					err = e.AddDepartment(ctx, userID, deptID, actorID())
				} else {
					err = e.RemoveDepartment(ctx, userID, deptID, actorID())
				}
				if err != nil {
					return err
				}
				d, err := e.GetDepartment(ctx, deptID)
				if err != nil {
					return err
				}
				return printDepartments([]domain.Department{d})
			})
		},
	}
}

func printDepartments(items []domain.Department) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Name", "Members", "Tasks"})
	for _, d := range items {
		tw.AppendRow(table.Row{d.ID, d.Name, refNames(d.Users), len(d.TaskIDs)})
	}
	tw.Render()
	return nil
}
