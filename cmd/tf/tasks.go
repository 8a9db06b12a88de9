package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskPendingCmd())
	task.AddCommand(taskFilterCmd())
	task.AddCommand(taskLogCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var (
		description         string
		departmentID, owner int64
		authorID            int64
		state               string
		processes           []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskCreateOptions{
				Description:  description,
				DepartmentID: int64Flag(cmd, "department-id", departmentID),
				AuthorID:     authorID,
				OwnerID:      int64Flag(cmd, "owner-id", owner),
				Processes:    processSpecs(processes, authorID),
				ActorID:      actorID(),
			}
			if state != "" {
				s, err := parseState(state)
				if err != nil {
					return err
				}
				opts.StateID = &s
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Int64Var(&authorID, "author-id", 0, "author user id")
	cmd.Flags().Int64Var(&owner, "owner-id", 0, "owner user id")
	cmd.Flags().Int64Var(&departmentID, "department-id", 0, "department id")
	cmd.Flags().StringVar(&state, "state", "", "initial state (default Active)")
	cmd.Flags().StringArrayVar(&processes, "process", nil, "process entry to log (repeatable)")
	_ = cmd.MarkFlagRequired("author-id")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var (
		description         string
		departmentID, owner int64
		authorID            int64
		state               string
		processes           []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Long:  "Department and owner are replaced on every update: omit --department-id or --owner-id to clear them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			opts := engine.TaskUpdateOptions{
				ID:           id,
				DepartmentID: int64Flag(cmd, "department-id", departmentID),
				OwnerID:      int64Flag(cmd, "owner-id", owner),
				Description:  stringFlag(cmd, "description", description),
				Processes:    processSpecs(processes, authorID),
				ActorID:      actorID(),
			}
			if state != "" {
				s, err := parseState(state)
				if err != nil {
					return err
				}
				opts.StateID = &s
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.UpdateTask(ctx, opts); err != nil {
					return err
				}
				t, err := e.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().Int64Var(&owner, "owner-id", 0, "owner user id")
	cmd.Flags().Int64Var(&departmentID, "department-id", 0, "department id")
	cmd.Flags().StringVar(&state, "state", "", "new state")
	cmd.Flags().StringArrayVar(&processes, "process", nil, "process entry to log (repeatable)")
	cmd.Flags().Int64Var(&authorID, "author-id", 0, "author of the logged process entries")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, id, actorID())
			})
		},
	}
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its process log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
}

func taskPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending <user-id>",
		Short: "Pending tasks owned by a user, grouped by state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.PendingTasksForOwner(ctx, id)
				if err != nil {
					return err
				}
				buckets := domain.PartitionPending(tasks)
				if viper.GetBool("json") {
					return printJSON(buckets)
				}
				for _, group := range []struct {
					name  string
					tasks []domain.Task
				}{
					{"Active", buckets.Active},
					{"InProgress", buckets.InProgress},
					{"Paused", buckets.Paused},
				} {
					fmt.Printf("%s (%d)\n", group.name, len(group.tasks))
					if len(group.tasks) > 0 {
						if err := printTasks(group.tasks); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
}

func taskFilterCmd() *cobra.Command {
	var (
		authorID, ownerID, departmentID int64
		state                           string
		createdFrom, createdTo          string
		completedFrom, completedTo      string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter tasks; every criterion is optional and all given ones must match",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := domain.TaskFilter{
				AuthorID:     int64Flag(cmd, "author-id", authorID),
				OwnerID:      int64Flag(cmd, "owner-id", ownerID),
				DepartmentID: int64Flag(cmd, "department-id", departmentID),
			}
			if state != "" {
				s, err := parseState(state)
				if err != nil {
					return err
				}
				f.StateID = &s
			}
			var err error
			for _, bound := range []struct {
				raw string
				dst **time.Time
			}{
				{createdFrom, &f.Created.From},
				{createdTo, &f.Created.To},
				{completedFrom, &f.Completed.From},
				{completedTo, &f.Completed.To},
			} {
				if *bound.dst, err = parseTime(bound.raw); err != nil {
					return err
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.FilterTasks(ctx, f)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().Int64Var(&authorID, "author-id", 0, "author user id")
	cmd.Flags().Int64Var(&ownerID, "owner-id", 0, "owner user id")
	cmd.Flags().Int64Var(&departmentID, "department-id", 0, "department id")
	cmd.Flags().StringVar(&state, "state", "", "state id or name")
	cmd.Flags().StringVar(&createdFrom, "created-from", "", "created at or after (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&createdTo, "created-to", "", "created at or before")
	cmd.Flags().StringVar(&completedFrom, "completed-from", "", "completed at or after")
	cmd.Flags().StringVar(&completedTo, "completed-to", "", "completed at or before")
	return cmd
}

func taskLogCmd() *cobra.Command {
	var (
		description string
		authorID    int64
	)
	cmd := &cobra.Command{
		Use:   "log <task-id>",
		Short: "Append a process entry to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AddProcess(ctx, id, engine.ProcessSpec{Description: description, AuthorID: authorID}, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Logged process %d on task %d\n", p.ID, p.TaskID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "entry text")
	cmd.Flags().Int64Var(&authorID, "author-id", 0, "author user id")
	_ = cmd.MarkFlagRequired("author-id")
	return cmd
}

func processSpecs(descriptions []string, authorID int64) []engine.ProcessSpec {
	specs := make([]engine.ProcessSpec, 0, len(descriptions))
	for _, d := range descriptions {
		specs = append(specs, engine.ProcessSpec{Description: d, AuthorID: authorID})
	}
	return specs
}

func printTasks(tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := newTable(table.Row{"ID", "Created", "State", "Description", "Department", "Author", "Owner"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.CreatedAt.Format(time.DateTime), t.StateName, t.Description, refName(t.Department), t.Author.Name, refName(t.Owner)})
	}
	tw.Render()
	return nil
}

func printTask(t domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	if err := printTasks([]domain.Task{t}); err != nil {
		return err
	}
	if t.CompletedAt != nil {
		fmt.Printf("Completed %s\n", t.CompletedAt.Format(time.DateTime))
	}
	if len(t.Processes) == 0 {
		return nil
	}
	tw := newTable(table.Row{"Process", "Created", "Author", "Description"})
	for _, p := range t.Processes {
		tw.AppendRow(table.Row{p.ID, p.CreatedAt.Format(time.DateTime), p.Author.Name, p.Description})
	}
	tw.Render()
	return nil
}
