package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/NERVsystems/poimap/pkg/analysis"
	"github.com/NERVsystems/poimap/pkg/monitoring"
	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/osm/queries"
	"github.com/NERVsystems/poimap/pkg/render"
	"github.com/NERVsystems/poimap/pkg/report"
	"github.com/NERVsystems/poimap/pkg/store"
	ver "github.com/NERVsystems/poimap/pkg/version"
)

// newClient builds an Overpass client from configuration, reporting to the
// Prometheus collectors through monitoring hooks.
func (a *app) newClient() *osm.Client {
	hooks := &osm.MonitoringHooks{
		OnRequest: func(service, operation string) {
			a.logger.Debug("external request", "service", service, "operation", operation)
		},
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			monitoring.RecordExternalServiceRequest(service, operation, duration, success)
		},
		OnRateLimit: func(service string, waitTime time.Duration) {
			monitoring.RecordRateLimitWait(service, waitTime)
		},
		OnError: func(service, errorType string) {
			monitoring.RecordError(service, errorType)
		},
	}

	o := a.cfg.Overpass
	return osm.NewClient(
		osm.WithBaseURL(o.URL),
		osm.WithUserAgent(o.UserAgent),
		osm.WithTag(a.cfg.Query.TagKey, a.cfg.Query.TagValue),
		osm.WithQueryTimeout(o.QueryTimeout),
		osm.WithRateLimit(o.RPS, o.Burst),
		osm.WithMonitoringHooks(hooks),
		osm.WithLogger(a.logger),
	)
}

// snapshotPath returns the named snapshot, or the only one in the working
// directory.
func (a *app) snapshotPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	path, err := store.Discover(".", a.cfg.Query.TagKey)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(a.stdout, "Using snapshot: %s\n", path)
	return path, nil
}

func (a *app) loadSnapshot(ctx context.Context, args []string) (string, *osm.Snapshot, error) {
	path, err := a.snapshotPath(args)
	if err != nil {
		return "", nil, err
	}
	snap, err := a.loader.Load(ctx, path)
	if err != nil {
		return "", nil, err
	}
	if n := len(snap.Skipped()); n > 0 {
		a.logger.Warn("snapshot has malformed elements", "path", path, "skipped", n)
	}
	report.Skipped(a.stdout, snap)
	return path, snap, nil
}

func runFetch(ctx context.Context, a *app, args []string) error {
	out, rest, err := commandFlags("fetch", args, 1)
	if err != nil {
		return err
	}

	var target queries.Target
	if len(rest) > 0 {
		if target, err = queries.ParseTarget(rest[0]); err != nil {
			return fmt.Errorf("invalid query target %q: %w", rest[0], err)
		}
	}
	target = target.OrDefault()

	client := a.newClient()
	if a.debug {
		if err := client.CheckHealth(ctx); err != nil {
			a.logger.Warn("overpass health check failed", "error", err)
		}
	}

	fmt.Fprintf(a.stdout, "Fetching %s=%s for %s...\n", a.cfg.Query.TagKey, a.cfg.Query.TagValue, target)
	snap, err := client.Fetch(ctx, target, a.cfg.Overpass.Timeout)
	if err != nil {
		return err
	}
	points, areas := snap.CountByKind()
	monitoring.RecordElements(points, areas, len(snap.Skipped()))

	if out == "" {
		out = store.SnapshotName(target, a.now())
	}
	if err := store.Save(out, snap); err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(out); err == nil {
		size = info.Size()
	}
	report.FetchSummary(a.stdout, out, snap, size)
	report.Preview(a.stdout, snap, report.PreviewCount, a.cfg.Query.TagKey)
	return nil
}

func runRender(ctx context.Context, a *app, args []string) error {
	out, rest, err := commandFlags("render", args, 1)
	if err != nil {
		return err
	}
	path, snap, err := a.loadSnapshot(ctx, rest)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := render.RenderContext(ctx, &buf, snap, render.Options{Title: a.cfg.Render.Title}); err != nil {
		return err
	}
	if out == "" {
		out = store.MapPath(path, a.now())
	}
	if err := store.WriteFile(out, buf.Bytes()); err != nil {
		return err
	}

	markers := render.Markers(snap)
	fmt.Fprintf(a.stdout, "Map generated: %s\n", out)
	fmt.Fprintf(a.stdout, "Markers: %d (%d wheelchair accessible)\n",
		len(markers), len(render.Filter{Wheelchair: render.WheelchairYes}.Apply(markers)))
	return nil
}

func runTags(ctx context.Context, a *app, args []string) error {
	out, rest, err := commandFlags("tags", args, 1)
	if err != nil {
		return err
	}
	path, snap, err := a.loadSnapshot(ctx, rest)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Analyzing %d elements...\n", snap.Len())
	inv := analysis.AttributeInventory(ctx, snap)
	report.TagsSummary(a.stdout, inv)

	if out == "" {
		out = store.TagsReportPath(path)
	}
	if err := store.WriteJSON(out, inv); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\nResults saved to: %s\n", out)
	return nil
}

func runExtents(ctx context.Context, a *app, args []string) error {
	out, rest, err := commandFlags("extents", args, 1)
	if err != nil {
		return err
	}
	_, snap, err := a.loadSnapshot(ctx, rest)
	if err != nil {
		return err
	}

	r := analysis.ExtentExtremes(ctx, snap)
	report.ExtentSummary(a.stdout, snap.Len(), r)

	if out == "" {
		return nil
	}
	if err := store.WriteJSON(out, r); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\nResults saved to: %s\n", out)
	return nil
}

func runCompare(ctx context.Context, a *app, args []string) error {
	_, rest, err := commandFlags("compare", args, 2)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("usage: poimap %s", commands["compare"].usage)
	}

	inventories := make([]analysis.Inventory, 0, 2)
	for _, path := range rest {
		snap, err := a.loader.Load(ctx, path)
		if err != nil {
			return err
		}
		inventories = append(inventories, analysis.AttributeInventory(ctx, snap))
	}

	d := analysis.CompareInventories(inventories[0], inventories[1])
	report.CompareSummary(a.stdout, rest[0], rest[1], d)
	return nil
}

func runVersion(_ context.Context, a *app, args []string) error {
	if _, _, err := commandFlags("version", args, 0); err != nil {
		return err
	}
	monitoring.UpdateSystemMetrics()
	fmt.Fprintln(a.stdout, ver.String())
	return nil
}
