package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/spf13/cobra"
)

type taskFlags struct {
	as     string
	format string
}

func taskCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.PersistentFlags().StringVar(&f.as, "as", "", "email of the acting user")
	cmd.PersistentFlags().StringVarP(&f.format, "format", "o", formatText, "output format: text, json or yaml")
	cmd.AddCommand(taskAddCmd(&f))
	cmd.AddCommand(taskListCmd(&f))
	cmd.AddCommand(taskShowCmd(&f))
	cmd.AddCommand(taskStatusCmd(&f))
	cmd.AddCommand(taskLinkCmd(&f))
	cmd.AddCommand(taskUpdateCmd(&f))
	cmd.AddCommand(taskCycleCheckCmd(&f))
	return cmd
}

// withCaller opens the workspace, resolves --as and runs fn.
func withCaller(cmd *cobra.Command, f *taskFlags, fn func(e *env, caller auth.Identity) error) error {
	e, closeFn, err := openEnv()
	if err != nil {
		return err
	}
	defer closeFn()
	caller, err := e.caller(cmd.Context(), f.as)
	if err != nil {
		return err
	}
	return fn(e, caller)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", value)
	}
	return id, nil
}

func taskAddCmd(f *taskFlags) *cobra.Command {
	var description, due string
	var assignee, dependsOn int64
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := task.NewTask{Title: strings.Join(args, " "), Description: description}
			if due != "" {
				d, err := task.ParseDate(due)
				if err != nil {
					return err
				}
				in.DueDate = &d
			}
			if assignee != 0 {
				in.AssigneeID = &assignee
			}
			if dependsOn != 0 {
				in.DependsOnID = &dependsOn
			}
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				if !(auth.Policy{}).Allow(caller, auth.ActionCreate, nil) {
					return errForbidden
				}
				created, err := e.svc.CreateTask(cmd.Context(), caller.UserID, in)
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), f.format, created.View(), func(w io.Writer) error {
					fmt.Fprintf(w, "task %d added\n", created.ID)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "markdown description")
	cmd.Flags().StringVar(&due, "due", "", "due date as YYYY-MM-DD")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "assignee user id")
	cmd.Flags().Int64Var(&dependsOn, "depends-on", 0, "id of a task the new task depends on")
	return cmd
}

type listOutput struct {
	Tasks   []task.View `json:"tasks"    yaml:"tasks"`
	Total   int         `json:"total"    yaml:"total"`
	Page    int         `json:"page"     yaml:"page"`
	PerPage int         `json:"per_page" yaml:"per_page"`
}

func taskListCmd(f *taskFlags) *cobra.Command {
	var status string
	var assignee int64
	var mine bool
	var filter task.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				s, err := task.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &s
			}
			if assignee != 0 {
				filter.AssigneeID = &assignee
			}
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				if mine || !(auth.Policy{}).Allow(caller, auth.ActionListAll, nil) {
					filter.AssigneeID = &caller.UserID
				}
				page, err := e.svc.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := listOutput{Tasks: task.Views(page.Items), Total: page.Total, Page: page.Page, PerPage: page.PerPage}
				return write(cmd.OutOrStdout(), f.format, out, func(w io.Writer) error {
					if len(out.Tasks) == 0 {
						fmt.Fprintln(w, "no tasks")
						return nil
					}
					for _, v := range out.Tasks {
						writeTaskLine(w, v)
					}
					fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("page %d, %d of %d tasks", out.Page, len(out.Tasks), out.Total)))
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "filter by assignee user id")
	cmd.Flags().BoolVar(&mine, "mine", false, "only tasks assigned to the acting user")
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.PerPage, "per-page", 0, "page size, defaults to tasks.default_page_size")
	return cmd
}

type showOutput struct {
	Task       task.View   `json:"task"       yaml:"task"`
	DependsOn  []task.View `json:"depends_on" yaml:"depends_on"`
	Dependents []task.View `json:"dependents" yaml:"dependents"`
}

func taskShowCmd(f *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				t, err := e.authorize(cmd.Context(), caller, id, auth.ActionView)
				if err != nil {
					return err
				}
				deps, err := e.svc.Dependencies(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := showOutput{Task: t.View(), DependsOn: task.Views(deps.DependsOn), Dependents: task.Views(deps.Dependents)}
				return write(cmd.OutOrStdout(), f.format, out, func(w io.Writer) error {
					fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("#%d %s", t.ID, t.Title)))
					fmt.Fprintf(w, "status: %s\n", renderStatus(t.Status))
					if out.Task.DueDate != "" {
						fmt.Fprintf(w, "due:    %s\n", out.Task.DueDate)
					}
					if t.AssigneeID != nil {
						fmt.Fprintf(w, "assignee: %d\n", *t.AssigneeID)
					}
					if strings.TrimSpace(t.Description) != "" {
						fmt.Fprint(w, renderMarkdown(t.Description))
					}
					writeSection(w, "depends on", out.DependsOn)
					writeSection(w, "dependents", out.Dependents)
					return nil
				})
			})
		},
	}
}

func writeSection(w io.Writer, title string, items []task.View) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(title+":"))
	for _, v := range items {
		writeTaskLine(w, v)
	}
}

func taskStatusCmd(f *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <pending|completed|canceled>",
		Short: "Change the status of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, err := task.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				if _, err := e.authorize(cmd.Context(), caller, id, auth.ActionUpdateStatus); err != nil {
					return err
				}
				updated, err := e.svc.UpdateStatus(cmd.Context(), id, status)
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), f.format, updated.View(), func(w io.Writer) error {
					fmt.Fprintf(w, "task %d is now %s\n", id, renderStatus(updated.Status))
					return nil
				})
			})
		},
	}
}

func taskLinkCmd(f *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id> <depends-on-id>",
		Short: "Make a task depend on another task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dependsOn, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				if _, err := e.authorize(cmd.Context(), caller, id, auth.ActionAddDependency); err != nil {
					return err
				}
				if err := e.svc.AddDependency(cmd.Context(), id, dependsOn); err != nil {
					return err
				}
				edge := graph.Edge{TaskID: id, DependsOnID: dependsOn}
				return write(cmd.OutOrStdout(), f.format, edge, func(w io.Writer) error {
					fmt.Fprintf(w, "task %d now depends on task %d\n", id, dependsOn)
					return nil
				})
			})
		},
	}
}

func taskUpdateCmd(f *taskFlags) *cobra.Command {
	var title, description, due string
	var assignee int64
	var clearDue, clearAssignee bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the title, description, due date or assignee of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var u task.Update
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("due") {
				d, err := task.ParseDate(due)
				if err != nil {
					return err
				}
				u.DueDate = &d
			}
			if flags.Changed("assignee") {
				u.AssigneeID = &assignee
			}
			u.ClearDueDate = clearDue
			u.ClearAssignee = clearAssignee
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				if _, err := e.authorize(cmd.Context(), caller, id, auth.ActionUpdate); err != nil {
					return err
				}
				updated, err := e.svc.UpdateTask(cmd.Context(), id, u)
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), f.format, updated.View(), func(w io.Writer) error {
					fmt.Fprintf(w, "task %d updated\n", id)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new markdown description")
	cmd.Flags().StringVar(&due, "due", "", "new due date as YYYY-MM-DD")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "new assignee user id")
	cmd.Flags().BoolVar(&clearAssignee, "clear-assignee", false, "remove the assignee")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	cmd.MarkFlagsMutuallyExclusive("assignee", "clear-assignee")
	return cmd
}

type cycleCheckOutput struct {
	TaskID           int64 `json:"task_id"            yaml:"task_id"`
	DependsOnID      int64 `json:"depends_on_id"      yaml:"depends_on_id"`
	WouldCreateCycle bool  `json:"would_create_cycle" yaml:"would_create_cycle"`
}

func taskCycleCheckCmd(f *taskFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle-check <id> <depends-on-id>",
		Short: "Report whether linking two tasks would create a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dependsOn, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withCaller(cmd, f, func(e *env, caller auth.Identity) error {
				if _, err := e.authorize(cmd.Context(), caller, id, auth.ActionView); err != nil {
					return err
				}
				cyclic, err := e.svc.WouldCreateCycle(cmd.Context(), id, dependsOn)
				if err != nil {
					return err
				}
				out := cycleCheckOutput{TaskID: id, DependsOnID: dependsOn, WouldCreateCycle: cyclic}
				return write(cmd.OutOrStdout(), f.format, out, func(w io.Writer) error {
					if cyclic {
						fmt.Fprintf(w, "linking %d -> %d would create a cycle\n", id, dependsOn)
					} else {
						fmt.Fprintf(w, "linking %d -> %d is safe\n", id, dependsOn)
					}
					return nil
				})
			})
		},
	}
}
