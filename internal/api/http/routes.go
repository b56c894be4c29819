package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/coronavirus-tracker/internal/common"
	"github.com/i474232898/coronavirus-tracker/internal/location"
)

var validate = validator.New()

// Pinger is implemented by backing stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. pinger may be nil.
func RegisterRoutes(app *fiber.App, registry *location.Registry, pinger Pinger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":  "ok",
			"service": "coronavirus-tracker",
		}
		if pinger != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["store"] = "down"
				return c.Status(fiber.StatusServiceUnavailable).JSON(status)
			}
			status["store"] = "up"
		}
		return c.JSON(status)
	})

	v1 := app.Group("/api/v1")

	v1.Get("/sources", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"sources": registry.Providers()})
	})

	v1.Get("/:source/latest", func(c *fiber.Ctx) error {
		snap, err := snapshot(c, registry)
		if err != nil {
			return err
		}
		if notModified(c, snap) {
			return c.SendStatus(fiber.StatusNotModified)
		}
		return c.JSON(fiber.Map{
			"latest":       snap.Latest,
			"last_updated": snap.FilledAt,
		})
	})

	v1.Get("/:source/locations", func(c *fiber.Ctx) error {
		var q locationsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, err := snapshot(c, registry)
		if err != nil {
			return err
		}
		if notModified(c, snap) {
			return c.SendStatus(fiber.StatusNotModified)
		}

		var (
			views  []locationView
			latest location.Latest
		)
		for _, loc := range snap.Locations {
			if !q.matches(loc) {
				continue
			}
			latest = latest.Add(loc.Latest)
			views = append(views, newLocationView(loc, q.Timelines))
		}
		if views == nil {
			views = []locationView{}
		}

		return c.JSON(fiber.Map{
			"latest":    latest,
			"locations": views,
		})
	})

	v1.Get("/:source/locations/:id", func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "location id must be an integer")
		}

		snap, err := snapshot(c, registry)
		if err != nil {
			return err
		}

		loc, err := snap.At(id)
		if err != nil {
			if errors.Is(err, location.ErrIndexOutOfRange) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read location")
		}
		if notModified(c, snap) {
			return c.SendStatus(fiber.StatusNotModified)
		}

		return c.JSON(fiber.Map{"location": newLocationView(loc, true)})
	})

	v1.Post("/:source/refresh", func(c *fiber.Ctx) error {
		svc, err := service(c, registry)
		if err != nil {
			return err
		}
		snap, err := svc.Refresh(c.UserContext())
		if err != nil {
			log.WithFields(log.Fields{"prefix": "api", "source": c.Params("source"), "error": err}).Error("refresh")
			return fiber.NewError(fiber.StatusServiceUnavailable, "failed to refresh locations")
		}
		setETag(c, snap)
		return c.JSON(fiber.Map{
			"snapshot":  snap.ID,
			"locations": snap.Len(),
			"latest":    snap.Latest,
		})
	})
}

func service(c *fiber.Ctx, registry *location.Registry) (location.Service, error) {
	svc, ok := registry.Lookup(c.Params("source"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown data source")
	}
	return svc, nil
}

func snapshot(c *fiber.Ctx, registry *location.Registry) (location.Snapshot, error) {
	svc, err := service(c, registry)
	if err != nil {
		return location.Snapshot{}, err
	}
	snap, err := svc.Snapshot(c.UserContext())
	if err != nil {
		log.WithFields(log.Fields{"prefix": "api", "source": c.Params("source"), "error": err}).Error("snapshot")
		return location.Snapshot{}, fiber.NewError(fiber.StatusServiceUnavailable, "failed to fetch locations")
	}
	setETag(c, snap)
	return snap, nil
}

func setETag(c *fiber.Ctx, snap location.Snapshot) {
	c.Set(fiber.HeaderETag, `"`+snap.ID+`"`)
}

func notModified(c *fiber.Ctx, snap location.Snapshot) bool {
	match := c.Get(fiber.HeaderIfNoneMatch)
	return match != "" && strings.Trim(match, `"`) == snap.ID
}

// locationsQuery holds the filters of the locations endpoint.
type locationsQuery struct {
	Country   string `validate:"omitempty,max=100"`
	Province  string `validate:"omitempty,max=100"`
	Timelines bool
}

func (q *locationsQuery) bind(c *fiber.Ctx) error {
	q.Country = strings.TrimSpace(c.Query("country"))
	q.Province = strings.TrimSpace(c.Query("province"))
	q.Timelines = common.EqualFoldAny(c.Query("timelines"), "1", "true", "yes")

	return validate.Struct(q)
}

func (q locationsQuery) matches(loc location.TimelinedLocation) bool {
	if q.Country != "" && !strings.EqualFold(loc.Country, q.Country) {
		return false
	}
	if q.Province != "" && !strings.EqualFold(loc.Province, q.Province) {
		return false
	}
	return true
}

// locationView is the wire shape of a location; timelines are optional.
type locationView struct {
	ID          int                  `json:"id"`
	Country     string               `json:"country"`
	Province    string               `json:"province"`
	Coordinates location.Coordinates `json:"coordinates"`
	LastUpdated time.Time            `json:"last_updated"`
	Latest      location.Latest      `json:"latest"`
	Timelines   *location.Timelines  `json:"timelines,omitempty"`
}

func newLocationView(loc location.TimelinedLocation, withTimelines bool) locationView {
	v := locationView{
		ID:          loc.ID,
		Country:     loc.Country,
		Province:    loc.Province,
		Coordinates: loc.Coordinates,
		LastUpdated: loc.LastUpdated,
		Latest:      loc.Latest,
	}
	if withTimelines {
		tl := loc.Timelines
		v.Timelines = &tl
	}
	return v
}
