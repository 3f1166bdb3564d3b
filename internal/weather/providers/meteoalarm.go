package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/wx-briefing/internal/weather"
)

// DefaultMeteoAlarmFeeds covers the countries sampled by the Europe region.
var DefaultMeteoAlarmFeeds = []string{
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-united-kingdom",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-france",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-germany",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-spain",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-italy",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-sweden",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-poland",
	"https://feeds.meteoalarm.org/feeds/meteoalarm-legacy-atom-netherlands",
}

const (
	meteoAlarmName     = "MeteoAlarm"
	meteoAlarmUpstream = "meteoalarm"
)

// MeteoAlarm reads European warnings from MeteoAlarm Atom/RSS feeds.
type MeteoAlarm struct {
	client *Client
	feeds  []string
}

var _ weather.RegionAlertSource = (*MeteoAlarm)(nil)

// NewMeteoAlarm builds the adapter; no feeds means DefaultMeteoAlarmFeeds.
func NewMeteoAlarm(c *Client, feeds []string) *MeteoAlarm {
	if len(feeds) == 0 {
		feeds = DefaultMeteoAlarmFeeds
	}
	return &MeteoAlarm{client: c, feeds: feeds}
}

func (m *MeteoAlarm) Name() string {
	return meteoAlarmName
}

// RegionAlerts reads every feed concurrently and merges them in feed order.
// A broken feed is skipped; the call only fails when no feed could be read.
func (m *MeteoAlarm) RegionAlerts(ctx context.Context, keep weather.SeverePredicate) ([]weather.Alert, error) {
	items := make([][]weather.Alert, len(m.feeds))
	errs := make([]error, len(m.feeds))

	var g errgroup.Group
	for i, feedURL := range m.feeds {
		g.Go(func() error {
			items[i], errs[i] = m.readFeed(ctx, feedURL)
			return nil
		})
	}
	_ = g.Wait()

	var (
		alerts []weather.Alert
		failed []error
	)
	for i := range m.feeds {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		alerts = append(alerts, items[i]...)
	}
	if len(failed) == len(m.feeds) && len(failed) > 0 {
		return nil, fmt.Errorf("eu alerts: %w", errors.Join(failed...))
	}
	return weather.FilterAlerts(alerts, keep), nil
}

func (m *MeteoAlarm) readFeed(ctx context.Context, feedURL string) ([]weather.Alert, error) {
	body, err := m.client.get(ctx, meteoAlarmUpstream, feedURL, nil, "application/atom+xml, application/rss+xml, application/xml")
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: parse feed: %w", meteoAlarmUpstream, err)
	}

	out := make([]weather.Alert, 0, len(feed.Items))
	for _, item := range feed.Items {
		if a, ok := alertFromItem(item); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// alertFromItem prefers the CAP extension elements and falls back to a
// "Event - Area" title.
func alertFromItem(item *gofeed.Item) (weather.Alert, bool) {
	capExt := item.Extensions["cap"]

	a := weather.Alert{
		Event:    capValue(capExt, "event"),
		Severity: capValue(capExt, "severity"),
		Areas:    weather.SplitAreas(capValue(capExt, "areaDesc")),
	}

	if a.Event == "" || len(a.Areas) == 0 {
		event, area := splitTitle(item.Title)
		if a.Event == "" {
			a.Event = event
		}
		if len(a.Areas) == 0 && area != "" {
			a.Areas = []string{area}
		}
	}
	if a.Event == "" {
		return weather.Alert{}, false
	}

	if t, err := time.Parse(time.RFC3339, capValue(capExt, "expires")); err == nil {
		a.Expires = &t
	}
	return a, true
}

func capValue(e map[string][]ext.Extension, name string) string {
	if vs := e[name]; len(vs) > 0 {
		return strings.TrimSpace(vs[0].Value)
	}
	return ""
}

func splitTitle(title string) (event, area string) {
	title = strings.TrimSpace(title)
	if i := strings.LastIndex(title, " - "); i > 0 {
		return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
	}
	return title, ""
}
