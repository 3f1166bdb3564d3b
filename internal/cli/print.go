package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/i474232898/wx-briefing/internal/briefing"
	"github.com/i474232898/wx-briefing/internal/forecaster"
	"github.com/i474232898/wx-briefing/internal/weather"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printResult writes a briefing. Verbose adds the list sections; debug adds
// the fetch diagnostics.
func printResult(w io.Writer, res *briefing.Result, asJSON, debug, verbose bool) error {
	if asJSON {
		return printJSON(w, res)
	}
	resp := res.Response

	if s := resp.SummaryText(); s != "" {
		fmt.Fprintln(w, s)
	}
	if verbose {
		for _, key := range []string{"timeline", "actions", "assumptions"} {
			items := sectionLines(resp.Sections[key])
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(key[:1])+key[1:])
			for _, item := range items {
				fmt.Fprintf(w, "  - %s\n", item)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, resp.BottomLine)
	printFooter(w, resp)

	if debug && len(res.Fetches) > 0 {
		fmt.Fprintln(w, "\nFetches:")
		for _, f := range res.Fetches {
			status := "ok"
			if !f.Succeeded {
				status = "failed: " + f.Detail
			}
			fmt.Fprintf(w, "  %-14s %8s  %s\n", f.Name, f.Elapsed.Round(time.Millisecond), status)
		}
	}
	return nil
}

func printFooter(w io.Writer, resp *forecaster.Response) {
	fmt.Fprintf(w, "Confidence: %.0f (%s)\n", resp.Confidence.Value, resp.Confidence.Rationale)
	fmt.Fprintf(w, "Provider: %s [%s]\n", resp.Provider, resp.Mode)
}

func printExplain(w io.Writer, out *briefing.ExplainResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, out)
	}
	fmt.Fprintf(w, "Explaining last %s: %s\n\n", out.Command, out.Question)
	fmt.Fprintln(w, out.Text)
	if out.Response != nil {
		if len(out.Response.UsedFeatureFields) > 0 {
			fmt.Fprintf(w, "\nFields used: %s\n", strings.Join(out.Response.UsedFeatureFields, ", "))
		}
		printFooter(w, out.Response)
	}
	return nil
}

func printWorldview(w io.Writer, wv weather.Worldview, asJSON bool) error {
	if asJSON {
		return printJSON(w, wv)
	}
	for i, r := range wv.Regions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %s\n", r.Name, r.Summary)
		for _, a := range r.Alerts {
			line := fmt.Sprintf("  - %s x%d", a.Event, a.Count)
			if len(a.Areas) > 0 {
				line += " (" + strings.Join(a.Areas, ", ") + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintf(w, "\nSources: %s\n", strings.Join(wv.Meta.Sources, ", "))
	return nil
}

// sectionLines renders a list section as strings; anything else is empty.
func sectionLines(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, fmt.Sprint(it))
		}
		return out
	case string:
		return []string{items}
	}
	return nil
}
