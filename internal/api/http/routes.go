package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/wx-briefing/internal/briefing"
	"github.com/i474232898/wx-briefing/internal/common"
	"github.com/i474232898/wx-briefing/internal/store"
	"github.com/i474232898/wx-briefing/internal/weather"
)

var validate = validator.New()

// Briefer is the subset of the briefing service the API exposes.
type Briefer interface {
	Worldview(ctx context.Context, severeOnly bool) weather.Worldview
	Forecast(ctx context.Context, p briefing.ForecastParams) *briefing.Result
	Risk(ctx context.Context, place string, hazards []string, verbose bool) *briefing.Result
	Alerts(ctx context.Context, place string, ai, verbose bool) *briefing.Result
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. Worldviews are
// served from the snapshot store when it has one and built live otherwise.
func RegisterRoutes(app *fiber.App, svc Briefer, snapshots weather.Store) {
	v1 := app.Group("/api/v1")

	v1.Get("/worldview", func(c *fiber.Ctx) error {
		severe := c.QueryBool("severe", false)
		key := store.Key(severe)

		wv, err := snapshots.GetLatest(key)
		if errors.Is(err, store.ErrNotFound) {
			wv = svc.Worldview(c.UserContext(), severe)
			snapshots.SaveSnapshot(key, wv)
		} else if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load worldview")
		}
		return c.JSON(wv)
	})

	v1.Get("/worldview/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		key := store.Key(req.Severe)
		views, err := snapshots.GetRange(key, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no worldview history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load worldview history")
		}

		return c.JSON(fiber.Map{
			"variant":    key,
			"from":       req.From,
			"to":         req.To,
			"worldviews": views,
		})
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		q := forecastQuery{
			Place:   c.Query("place"),
			When:    c.Query("when"),
			Horizon: c.Query("horizon", "24h"),
			Focus:   c.Query("focus"),
			Verbose: c.QueryBool("verbose", false),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(svc.Forecast(c.UserContext(), briefing.ForecastParams{
			Place:   q.Place,
			When:    q.When,
			Horizon: q.Horizon,
			Focus:   q.Focus,
			Verbose: q.Verbose,
		}))
	})

	v1.Get("/risk", func(c *fiber.Ctx) error {
		q := riskQuery{
			Place:   c.Query("place"),
			Hazards: common.SplitList(c.Query("hazards")),
			Verbose: c.QueryBool("verbose", false),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(svc.Risk(c.UserContext(), q.Place, q.Hazards, q.Verbose))
	})

	v1.Get("/alerts", func(c *fiber.Ctx) error {
		q := alertsQuery{
			Place:   c.Query("place"),
			AI:      c.QueryBool("ai", false),
			Verbose: c.QueryBool("verbose", false),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(svc.Alerts(c.UserContext(), q.Place, q.AI, q.Verbose))
	})
}

type forecastQuery struct {
	Place   string `validate:"required,max=200"`
	When    string `validate:"max=100"`
	Horizon string `validate:"oneof=6h 12h 24h 3d"`
	Focus   string `validate:"max=64"`
	Verbose bool
}

type riskQuery struct {
	Place   string   `validate:"required,max=200"`
	Hazards []string `validate:"max=10,dive,max=32"`
	Verbose bool
}

type alertsQuery struct {
	Place   string `validate:"required,max=200"`
	AI      bool
	Verbose bool
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Severe bool
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Severe = c.QueryBool("severe", false)

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
