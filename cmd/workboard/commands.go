package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	serveradapter "github.com/evanschultz/workboard/internal/adapters/server"
	servercommon "github.com/evanschultz/workboard/internal/adapters/server/common"
	"github.com/evanschultz/workboard/internal/app"
	"github.com/evanschultz/workboard/internal/config"
	"github.com/evanschultz/workboard/internal/domain"
	"github.com/evanschultz/workboard/internal/render"
	"github.com/evanschultz/workboard/internal/tui"
)

// clipboardWriteAll copies standup text; tests replace it.
var clipboardWriteAll = clipboard.WriteAll

// rolloverInterval is how often serve checks for a new day.
const rolloverInterval = time.Minute

func pathsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "env: %s\n", paths.EnvPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func showCmd(opts *rootOptions) *cobra.Command {
	var (
		all   bool
		notes bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show today's board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(_ context.Context, rt *runtime) error {
				out := cmd.OutOrStdout()
				todayKey := rt.session.TodayKey()
				today := rt.session.Today()
				_, _ = fmt.Fprintln(out, render.Columns(todayKey, today, width))
				if notes {
					if text := notesMarkdown(todayKey, today); text != "" {
						var md render.Markdown
						_, _ = fmt.Fprintln(out, md.Render(text, width))
					}
				}
				if all {
					if history := render.History(rt.session.Board(), todayKey); history != "" {
						_, _ = fmt.Fprintln(out, history)
					}
				}
				_, _ = fmt.Fprintln(out, render.Activity(rt.session.LastActivity()))
				if rt.session.Mode() == app.ModeOffline && rt.cfg.Remote.Backend != config.RemoteNone {
					_, _ = fmt.Fprintln(out, "(offline: showing the local copy)")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include earlier days")
	cmd.Flags().BoolVarP(&notes, "notes", "n", false, "render task notes")
	cmd.Flags().IntVarP(&width, "width", "w", 120, "board width in columns")
	return cmd
}

// notesMarkdown collects today's task notes into one markdown document.
func notesMarkdown(todayKey string, today []domain.Task) string {
	board := domain.Board{todayKey: today}
	var b strings.Builder
	for _, status := range domain.Statuses {
		for _, task := range board.Column(todayKey, status) {
			if strings.TrimSpace(task.Notes) == "" {
				continue
			}
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", task.Title, task.Notes)
		}
	}
	return strings.TrimSpace(b.String())
}

func addCmd(opts *rootOptions) *cobra.Command {
	var person, notes string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to today's Doing column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				who := person
				if strings.TrimSpace(who) == "" {
					who = rt.cfg.Board.DefaultPerson
				}
				task, err := rt.board.AddTask(ctx, servercommon.AddTaskRequest{
					Title:  strings.Join(args, " "),
					Person: who,
					Notes:  notes,
				})
				if err != nil {
					return err
				}
				printTask(cmd, "added", task)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "who owns the task (defaults to board.default_person)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "task notes (markdown)")
	return cmd
}

func moveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to doing, blocked, help or done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.board.MoveTask(ctx, servercommon.MoveTaskRequest{ID: args[0], Status: args[1]})
				if err != nil {
					return err
				}
				printTask(cmd, "moved", task)
				return nil
			})
		},
	}
}

func editCmd(opts *rootOptions) *cobra.Command {
	var title, person, notes string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's title, person or notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				current, err := todayTask(rt, args[0])
				if err != nil {
					return err
				}
				req := servercommon.EditTaskRequest{
					ID:     current.ID,
					Title:  current.Title,
					Person: current.Person,
					Notes:  current.Notes,
				}
				if cmd.Flags().Changed("title") {
					req.Title = title
				}
				if cmd.Flags().Changed("person") {
					req.Person = person
				}
				if cmd.Flags().Changed("notes") {
					req.Notes = notes
				}
				task, err := rt.board.EditTask(ctx, req)
				if err != nil {
					return err
				}
				printTask(cmd, "edited", task)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&person, "person", "p", "", "new person")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "new notes; empty clears them")
	return cmd
}

func priorityCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "priority <id> <high|medium|low|none>",
		Short: "Set a task's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.board.SetPriority(ctx, servercommon.PriorityRequest{ID: args[0], Priority: args[1]})
				if err != nil {
					return err
				}
				printTask(cmd, "prioritized", task)
				return nil
			})
		},
	}
}

func reorderCmd(opts *rootOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "reorder <id> <index>",
		Short: "Place a task at a zero-based index within a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index %q: %w", args[1], err)
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				target := status
				if strings.TrimSpace(target) == "" {
					current, err := todayTask(rt, args[0])
					if err != nil {
						return err
					}
					target = string(current.Status)
				}
				task, err := rt.board.PositionTask(ctx, servercommon.PositionRequest{
					ID:     args[0],
					Status: target,
					Index:  &index,
				})
				if err != nil {
					return err
				}
				printTask(cmd, "reordered", task)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "destination column (defaults to the task's current column)")
	return cmd
}

func rmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete one of today's tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.board.DeleteTask(ctx, args[0])
				if err != nil {
					return err
				}
				printTask(cmd, "deleted", task)
				return nil
			})
		},
	}
}

func activityCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Print the most recent board activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(_ context.Context, rt *runtime) error {
				activity, ok := rt.session.LastActivity()
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No activity yet.")
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", activity.CreatedAt.Local().Format(time.DateTime), activity.Message)
				return nil
			})
		},
	}
}

func standupCmd(opts *rootOptions) *cobra.Command {
	var (
		copyText bool
		raw      bool
		width    int
	)
	cmd := &cobra.Command{
		Use:   "standup",
		Short: "Print today's board grouped by person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(_ context.Context, rt *runtime) error {
				digest := render.Standup(rt.session.TodayKey(), rt.session.Today())
				if copyText {
					if err := clipboardWriteAll(digest); err != nil {
						return fmt.Errorf("copy standup: %w", err)
					}
					rt.logger.Info("standup copied to clipboard", "bytes", len(digest))
				}
				if raw {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), digest)
					return nil
				}
				var md render.Markdown
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), md.Render(digest, width))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&copyText, "copy", "c", false, "copy the markdown digest to the clipboard")
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal styling")
	cmd.Flags().IntVarP(&width, "width", "w", 80, "wrap width")
	return cmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				cfg := serveradapter.Config{
					HTTPBind:      rt.cfg.Server.Bind,
					APIEndpoint:   rt.cfg.Server.APIEndpoint,
					MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
				}
				if cmd.Flags().Changed("http") {
					cfg.HTTPBind = httpBind
				}
				if cmd.Flags().Changed("api-endpoint") {
					cfg.APIEndpoint = apiEndpoint
				}
				if cmd.Flags().Changed("mcp-endpoint") {
					cfg.MCPEndpoint = mcpEndpoint
				}
				rt.logger.Info("serve starting", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)

				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				group, gctx := errgroup.WithContext(ctx)
				group.Go(func() error {
					defer cancel()
					return serveCommandRunner(gctx, cfg, serveradapter.Dependencies{Board: rt.board})
				})
				group.Go(func() error {
					return rt.session.RunRollover(gctx, rolloverInterval)
				})
				return group.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (defaults to server.bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	return cmd
}

func boardCmd(opts *rootOptions) *cobra.Command {
	var (
		person    string
		noConfirm bool
	)
	cmd := &cobra.Command{
		Use:     "board",
		Aliases: []string{"tui"},
		Short:   "Open today's board in the terminal",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				who := strings.TrimSpace(person)
				if who == "" {
					who = rt.cfg.Board.DefaultPerson
				}
				changes, stop := rt.board.Watch()
				defer stop()
				model := tui.NewModel(rt.board,
					tui.WithPerson(who),
					tui.WithChanges(changes),
					tui.WithConfirmDelete(!noConfirm),
				)

				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				group, gctx := errgroup.WithContext(ctx)
				group.Go(func() error {
					defer cancel()
					if _, err := programFactory(model).Run(); err != nil {
						return fmt.Errorf("run board: %w", err)
					}
					return nil
				})
				group.Go(func() error {
					return rt.session.RunRollover(gctx, rolloverInterval)
				})
				return group.Wait()
			})
		},
	}
	cmd.Flags().StringVarP(&person, "person", "p", "", "who new tasks belong to (defaults to board.default_person)")
	cmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "delete without asking")
	return cmd
}

// todayTask resolves an id prefix to one of today's tasks.
func todayTask(rt *runtime, prefix string) (domain.Task, error) {
	id, err := rt.session.ResolveID(prefix)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %q: %w", prefix, err)
	}
	for _, task := range rt.session.Today() {
		if task.ID == id {
			return task, nil
		}
	}
	return domain.Task{}, fmt.Errorf("task %q: not on today's board", prefix)
}

// printTask writes one confirmation line with a short id.
func printTask(cmd *cobra.Command, verb string, task servercommon.TaskView) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q [%s]\n", verb, shortID(task.ID), task.Title, task.StatusLabel)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
