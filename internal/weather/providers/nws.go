package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/wx-briefing/internal/weather"
)

// DefaultNWSAlertsURL is the NWS active-alerts endpoint.
const DefaultNWSAlertsURL = "https://api.weather.gov/alerts/active"

const (
	nwsName     = "NWS CAP"
	nwsUpstream = "nws"

	maxPointAlerts = 5
)

// NWS reads active alerts from the National Weather Service CAP API.
type NWS struct {
	client *Client
	url    string
}

var (
	_ weather.PointAlertSource  = (*NWS)(nil)
	_ weather.RegionAlertSource = (*NWS)(nil)
)

// NewNWS builds the adapter; an empty alertsURL uses the public endpoint.
func NewNWS(c *Client, alertsURL string) *NWS {
	if alertsURL == "" {
		alertsURL = DefaultNWSAlertsURL
	}
	return &NWS{client: c, url: alertsURL}
}

func (n *NWS) Name() string {
	return nwsName
}

type nwsCollection struct {
	Features []struct {
		Properties struct {
			Event    string `json:"event"`
			Severity string `json:"severity"`
			AreaDesc string `json:"areaDesc"`
			Ends     string `json:"ends"`
			Expires  string `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

func (c nwsCollection) alerts(limit int) []weather.Alert {
	out := make([]weather.Alert, 0, len(c.Features))
	for _, f := range c.Features {
		if limit > 0 && len(out) == limit {
			break
		}
		p := f.Properties
		a := weather.Alert{
			Event:    p.Event,
			Severity: p.Severity,
			Areas:    weather.SplitAreasOn(p.AreaDesc, ";"),
		}
		for _, ts := range []string{p.Ends, p.Expires} {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				a.Expires = &t
				break
			}
		}
		out = append(out, a)
	}
	return out
}

// PointAlerts returns up to five active alerts covering the point.
func (n *NWS) PointAlerts(ctx context.Context, at weather.Coordinate) ([]weather.Alert, error) {
	params := url.Values{}
	params.Set("point", strconv.FormatFloat(at.Lat, 'f', 3, 64)+","+strconv.FormatFloat(at.Lon, 'f', 3, 64))

	var payload nwsCollection
	if err := n.client.getJSON(ctx, nwsUpstream, n.url, params, &payload); err != nil {
		return nil, fmt.Errorf("point alerts: %w", err)
	}
	return payload.alerts(maxPointAlerts), nil
}

// RegionAlerts returns every active US alert accepted by keep.
func (n *NWS) RegionAlerts(ctx context.Context, keep weather.SeverePredicate) ([]weather.Alert, error) {
	params := url.Values{}
	params.Set("status", "actual")
	params.Set("message_type", "alert")

	var payload nwsCollection
	if err := n.client.getJSON(ctx, nwsUpstream, n.url, params, &payload); err != nil {
		return nil, fmt.Errorf("us alerts: %w", err)
	}
	return weather.FilterAlerts(payload.alerts(0), keep), nil
}
