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

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userRegisterCmd())
	user.AddCommand(userUpdateCmd())
	user.AddCommand(userDeleteCmd())
	user.AddCommand(userShowCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userRolesCmd())
	return user
}

func userRegisterCmd() *cobra.Command {
	var (
		username, password string
		roleID             int64
		departmentIDs      []int64
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.RegisterUser(ctx, engine.UserRegisterOptions{
					Username:      username,
					Password:      password,
					RoleID:        int64Flag(cmd, "role-id", roleID),
					DepartmentIDs: departmentIDs,
					ActorID:       actorID(),
				})
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().Int64Var(&roleID, "role-id", 0, "role id (default standard)")
	cmd.Flags().Int64SliceVar(&departmentIDs, "department-id", nil, "department ids")
	return cmd
}

func userUpdateCmd() *cobra.Command {
	var (
		username, password string
		roleID             int64
		departmentIDs      []int64
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user",
		Long:  "Memberships are replaced by --department-id: omit it to remove the user from every department.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.UpdateUser(ctx, engine.UserUpdateOptions{
					ID:            id,
					Username:      stringFlag(cmd, "username", username),
					Password:      stringFlag(cmd, "password", password),
					RoleID:        int64Flag(cmd, "role-id", roleID),
					DepartmentIDs: departmentIDs,
					ActorID:       actorID(),
				})
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "new username")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().Int64Var(&roleID, "role-id", 0, "role id")
	cmd.Flags().Int64SliceVar(&departmentIDs, "department-id", nil, "department ids")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user that has no tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteUser(ctx, id, actorID())
			})
		},
	}
}

func userShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.GetUser(ctx, id)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printUsers(items)
			})
		},
	}
}

func userRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				roles, err := e.ListRoles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(roles)
				}
				tw := newTable(table.Row{"ID", "Name"})
				for _, r := range roles {
					tw.AppendRow(table.Row{r.ID, r.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func printUsers(items []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Username", "Role", "Departments", "Authored", "Owned"})
	for _, u := range items {
		tw.AppendRow(table.Row{u.ID, u.Username, u.Role.Name, refNames(u.Departments), len(u.AuthoredTaskIDs), len(u.OwnedTaskIDs)})
	}
	tw.Render()
	return nil
}
