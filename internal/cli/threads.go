package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/switchboard/internal/presentation/tui"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/google/uuid"
)

// resolveThread accepts either a thread id or a username.
func resolveThread(app *App, ref string) (string, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return ref, nil
	}
	return app.Engine.ThreadID(ref)
}

// ListThreads prints every persisted thread id.
func ListThreads(ctx context.Context, app *App, w io.Writer) error {
	ids, err := app.Engine.Sessions().List(ctx)
	if err != nil {
		return fmt.Errorf("error listing threads: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No threads found.")
		return nil
	}
	sort.Strings(ids)
	fmt.Fprintln(w, "Threads:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// ShowThread prints the conversation of a thread, as JSON when asJSON is set.
func ShowThread(ctx context.Context, app *App, w io.Writer, ref string, asJSON bool) error {
	threadID, err := resolveThread(app, ref)
	if err != nil {
		return err
	}
	exists, err := app.Engine.Sessions().Exists(ctx, threadID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("thread '%s': %w", threadID, domain.ErrThreadNotFound)
	}
	conv, err := app.Engine.Sessions().Load(ctx, threadID)
	if err != nil {
		return fmt.Errorf("error loading thread '%s': %w", threadID, err)
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ThreadID string           `json:"thread_id"`
			Messages []domain.Message `json:"messages"`
		}{threadID, conv.Messages()})
	}

	fmt.Fprintln(w, tui.Dim("thread "+threadID))
	for _, m := range conv.Messages() {
		who := string(m.Role)
		if m.Name != "" {
			who += " (" + m.Name + ")"
		}
		fmt.Fprintf(w, "%s\n%s\n\n", tui.Dim(who+":"), m.Content)
	}
	return nil
}

// RemoveThreads deletes each referenced thread. It reports every failure and
// returns an error when at least one removal failed.
func RemoveThreads(ctx context.Context, app *App, w io.Writer, refs []string) error {
	failed := 0
	for _, ref := range refs {
		threadID, err := resolveThread(app, ref)
		if err == nil {
			err = app.Engine.Sessions().Delete(ctx, threadID)
		}
		if err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", ref, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "Removed thread '%s'\n", threadID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d removals failed", failed, len(refs))
	}
	return nil
}
