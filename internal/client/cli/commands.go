package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/client/auth"
	"github.com/dmitrijs2005/imagesync/internal/client/credentials"
	"github.com/dmitrijs2005/imagesync/internal/client/models"
	"github.com/dmitrijs2005/imagesync/internal/client/services"
)

var errUsage = errors.New("wrong number of arguments")

func usage(format string) error {
	return fmt.Errorf("%w, usage: %s", errUsage, format)
}

func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("import <path>")
	}
	asset, err := a.library.Import(ctx, args[0])
	if asset == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(a.out, "Imported %s, upload failed and will be retried: %v\n", asset.ID, err)
		return nil
	}
	fmt.Fprintf(a.out, "Imported %s (%s)\n", asset.ID, asset.UploadStatus)
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	list := a.library.List
	if len(args) == 1 && args[0] == "all" {
		list = a.library.All
	}
	items, err := list(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No images.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPLOAD\tDELETION\tSIZES\tCREATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.UploadStatus, it.DeletionStatus,
			models.JoinSizes(it.StoredSizes), it.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("show <id>")
	}
	asset, err := a.library.Get(ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	row := func(k string, v any) { fmt.Fprintf(tw, "%s:\t%v\n", k, v) }
	row("id", asset.ID)
	row("file", asset.FilePath)
	row("format", optional(asset.OriginalFormat))
	row("remote id", optional(asset.RemoteImageID))
	row("upload", fmt.Sprintf("%s (attempts %d/%d)", asset.UploadStatus, asset.UploadRetryCount, models.MaxRetries))
	row("last upload attempt", optionalTime(asset.LastUploadAttempt))
	row("uploaded at", optionalTime(asset.UploadedAt))
	row("sizes", models.JoinSizes(asset.StoredSizes))
	row("deletion", fmt.Sprintf("%s (attempts %d/%d)", asset.DeletionStatus, asset.DeletionRetryCount, models.MaxRetries))
	row("last deletion attempt", optionalTime(asset.LastDeletionAttempt))
	row("created", asset.CreatedAt.Local().Format(time.DateTime))
	return tw.Flush()
}

func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("export <id> <thumbnail|medium|large> <file>")
	}
	size, err := models.ParseSize(args[1])
	if err != nil {
		return err
	}
	asset, err := a.library.Get(ctx, args[0])
	if err != nil {
		return err
	}
	data, err := a.images.GetImage(ctx, asset, size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[2], data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", len(data), args[2])
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delete <id>")
	}
	asset, err := a.library.Get(ctx, args[0])
	if err != nil {
		return err
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Delete %s?", asset.ID), a.out)
	if err != nil || !ok {
		return err
	}

	err = a.deleter.DeleteImage(ctx, asset)
	switch {
	case errors.Is(err, services.ErrOffline):
		fmt.Fprintln(a.out, "Offline: deletion queued and will run when the connection returns.")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("retry <id>")
	}
	asset, err := a.library.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if asset.UploadStatus == models.UploadCompleted {
		fmt.Fprintln(a.out, "Already uploaded.")
		return nil
	}
	if asset.DeletionStatus != models.DeletionNone {
		return fmt.Errorf("asset %s is being deleted", asset.ID)
	}

	src, original, err := a.loader.Load(ctx, asset)
	if err != nil {
		return err
	}
	if err := a.uploader.UploadImage(ctx, asset, src, original); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s\n", asset.ID)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if a.mode() == ModeOffline {
		fmt.Fprintln(a.out, "Offline: only local work is possible.")
	}
	a.runScans(ctx)
	fmt.Fprintln(a.out, "Sync finished.")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	items, err := a.library.All(ctx)
	if err != nil {
		return err
	}

	uploads := map[models.UploadStatus]int{}
	deletions := map[models.DeletionStatus]int{}
	for _, it := range items {
		uploads[it.UploadStatus]++
		if it.DeletionStatus != models.DeletionNone {
			deletions[it.DeletionStatus]++
		}
	}

	var device string
	cred, err := a.identity.Credential(ctx)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		device = "not registered"
	case err != nil:
		device = "unreadable: " + err.Error()
	case auth.IsExpired(time.Now(), cred.TokenExpiry):
		device = cred.DeviceID + " (token due for refresh)"
	default:
		device = fmt.Sprintf("%s (token valid until %s)", cred.DeviceID, cred.TokenExpiry.Local().Format(time.DateTime))
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "connection:\t%s\n", a.mode())
	fmt.Fprintf(tw, "device:\t%s\n", device)
	fmt.Fprintf(tw, "images:\t%d\n", len(items))
	fmt.Fprintf(tw, "uploads:\t%s\n", counts(uploads))
	fmt.Fprintf(tw, "deletions:\t%s\n", counts(deletions))
	if last, err := a.lastScan(ctx); err == nil && !last.IsZero() {
		fmt.Fprintf(tw, "last sync:\t%s\n", last.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.identity.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Device credential removed; a new device is registered on next upload.")
	return nil
}

func (a *App) ClearCache(ctx context.Context) error {
	if err := a.cache.ClearCache(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Cache cleared.")
	return nil
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func counts[K ~string](m map[K]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[K(k)]))
	}
	return strings.Join(parts, " ")
}
