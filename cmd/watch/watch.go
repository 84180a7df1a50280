package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lorrc/project-hub-backend/internal/client"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
	"github.com/lorrc/project-hub-backend/internal/reconciler"
)

// Reconnect backoff bounds.
var (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

var orgCmd = &cobra.Command{
	Use:   "org <organization-id>",
	Short: "Follow an organization's projects and stats as they change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api, err := connect(ctx)
		if err != nil {
			return err
		}

		logger := logging.NewLogger(logging.Config{
			Level:       logLevel,
			Format:      "text",
			Output:      os.Stderr,
			ServiceName: "watch",
		})

		view := newOrgView(api, cmd.OutOrStdout(), jsonOutput)
		return follow(ctx, api, orgID, reconciler.New(view, logger), logger)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <organization-id>",
	Short: "Print an organization's project stats once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}

		api, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := api.Stats(cmd.Context(), orgID)
		if err != nil {
			return err
		}
		return printStats(cmd.OutOrStdout(), stats, jsonOutput)
	},
}

func connect(ctx context.Context) (*client.Client, error) {
	api, err := client.New(serverURL, token)
	if err != nil {
		return nil, err
	}
	if email != "" {
		if _, err := api.Login(ctx, email, password); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	} else if token == "" {
		return nil, errors.New("either --token or --email is required")
	}
	return api, nil
}

// follow keeps one subscription open at a time, resyncing after every
// (re)connect since events published while disconnected are lost.
func follow(ctx context.Context, api *client.Client, orgID uuid.UUID, rec *reconciler.Reconciler, logger *slog.Logger) error {
	backoff := minBackoff

	for {
		sub, err := api.Subscribe(ctx, orgID)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("subscribe failed, retrying", "error", err, "backoff", backoff)
		} else {
			backoff = minBackoff
			rec.Resync(ctx, orgID)

			err = rec.Run(ctx, sub.Events())
			sub.Close()
			if !errors.Is(err, reconciler.ErrStreamClosed) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			if client.ShouldResubscribe(sub.Err()) {
				// The server is draining or restarting; give it a moment.
				backoff = minBackoff
				logger.Info("feed closed by server, resubscribing", "reason", sub.Err(), "backoff", backoff)
			} else {
				logger.Warn("feed lost, reconnecting", "error", sub.Err(), "backoff", backoff)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// orgView is the client-side copy of one organization, kept current by the
// reconciler.
type orgView struct {
	api  *client.Client
	out  io.Writer
	json bool

	mu       sync.Mutex
	projects map[uuid.UUID]client.Project
}

func newOrgView(api *client.Client, out io.Writer, asJSON bool) *orgView {
	return &orgView{
		api:      api,
		out:      out,
		json:     asJSON,
		projects: make(map[uuid.UUID]client.Project),
	}
}

func (v *orgView) Refresh(ctx context.Context, view reconciler.View) error {
	switch view.Kind {
	case reconciler.KindProjectList:
		projects, err := v.api.ListProjects(ctx, view.ID)
		if err != nil {
			return err
		}
		v.replaceProjects(projects)
		return v.printProjects()

	case reconciler.KindStats:
		stats, err := v.api.Stats(ctx, view.ID)
		if err != nil {
			return err
		}
		return printStats(v.out, stats, v.json)

	case reconciler.KindTask:
		if view.Deleted {
			return v.printLine("task %s deleted", view.ID)
		}
		task, err := v.api.GetTask(ctx, view.ID)
		if client.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return v.printLine("task %s %q is %s", task.ID, task.Title, task.Status)

	case reconciler.KindProject:
		// Project rows arrive with the list refresh.
		if view.Deleted {
			return v.printLine("project %s deleted", view.ID)
		}
		return nil

	case reconciler.KindComment:
		// Comment lists are task scoped; the event is only reported.
		state := "changed"
		if view.Deleted {
			state = "deleted"
		}
		return v.printLine("comment %s %s", view.ID, state)
	}
	return nil
}

func (v *orgView) replaceProjects(projects []client.Project) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.projects = make(map[uuid.UUID]client.Project, len(projects))
	for _, p := range projects {
		v.projects[p.ID] = p
	}
}

func (v *orgView) printProjects() error {
	v.mu.Lock()
	projects := make([]client.Project, 0, len(v.projects))
	for _, p := range v.projects {
		projects = append(projects, p)
	}
	v.mu.Unlock()

	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })

	if v.json {
		return json.NewEncoder(v.out).Encode(map[string]any{"projects": projects})
	}
	fmt.Fprintf(v.out, "%s  %d project(s)\n", time.Now().Format("15:04:05"), len(projects))
	for _, p := range projects {
		fmt.Fprintf(v.out, "  %-10s %-30s %d/%d tasks done\n", p.Status, p.Name, p.CompletedTasks, p.TaskCount)
	}
	return nil
}

func (v *orgView) printLine(format string, args ...any) error {
	if v.json {
		return nil
	}
	_, err := fmt.Fprintf(v.out, "%s  "+format+"\n", append([]any{time.Now().Format("15:04:05")}, args...)...)
	return err
}

func printStats(out io.Writer, stats *domain.ProjectStats, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(map[string]any{"stats": stats})
	}
	_, err := fmt.Fprintf(out, "stats: %d projects (%d active, %d completed, %d on hold), %d/%d tasks done (%.1f%%)\n",
		stats.TotalProjects, stats.ActiveProjects, stats.CompletedProjects, stats.OnHoldProjects,
		stats.CompletedTasks, stats.TotalTasks, stats.CompletionRate)
	return err
}
