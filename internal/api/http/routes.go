package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/sunset-forecast/internal/cache"
	"github.com/i474232898/sunset-forecast/internal/grid"
	"github.com/i474232898/sunset-forecast/internal/store"
	"github.com/i474232898/sunset-forecast/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Service *weather.Service
	Cache   *cache.PredictionCache
	Store   store.Store
	Grids   *grid.Registry
	Logger  *zap.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handlers{Deps: d, logger: d.Logger.Named("http")}

	v1 := app.Group("/api/v1")

	v1.Get("/sunset", h.getSunset)
	v1.Get("/location/last", h.getLastLocation)

	v1.Get("/rate-limit", h.getRateLimit)
	v1.Delete("/rate-limit", h.clearRateLimit)

	v1.Get("/cache/stats", h.getCacheStats)
	v1.Delete("/cache", h.clearCache)

	v1.Post("/grid", h.createGrid)
	v1.Get("/grid/:id", h.getGrid)
	v1.Put("/grid/:id/bounds", h.putGridBounds)
	v1.Put("/grid/:id/day", h.putGridDay)
	v1.Post("/grid/:id/retry", h.retryGrid)
	v1.Delete("/grid/:id", h.deleteGrid)
}

type handlers struct {
	Deps
	logger *zap.Logger
}

func (h *handlers) getSunset(c *fiber.Ctx) error {
	coords, err := parseCoordinates(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	preds, err := h.Service.GetSunsetPrediction(c.UserContext(), coords.Lat, coords.Lon)
	if err != nil {
		return predictionError(err)
	}

	place, err := h.Service.PlaceName(c.UserContext(), coords.Lat, coords.Lon)
	if err != nil {
		h.logger.Warn("place name lookup failed", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"location":    coords,
		"place":       place,
		"predictions": preds,
	})
}

func (h *handlers) getLastLocation(c *fiber.Ctx) error {
	coords, err := h.Service.LastLocation(c.UserContext())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no location has been used yet")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read last location")
	}
	return c.JSON(coords)
}

func (h *handlers) getRateLimit(c *fiber.Ctx) error {
	limit := h.Service.RateLimit()
	return c.JSON(fiber.Map{
		"rateLimited": limit.Limited(),
		"message":     limit.Message(),
	})
}

// clearRateLimit lowers the shared latch. Grid sessions retry their missing
// markers on their next retry or bounds change.
func (h *handlers) clearRateLimit(c *fiber.Ctx) error {
	h.Service.RateLimit().Clear()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) getCacheStats(c *fiber.Ctx) error {
	if h.Cache == nil {
		return fiber.NewError(fiber.StatusNotFound, "cache is disabled")
	}
	hits, misses := h.Cache.Stats()
	return c.JSON(fiber.Map{
		"entries": h.Cache.Len(),
		"hits":    hits,
		"misses":  misses,
	})
}

// clearCache drops the in-memory cache and every persisted key.
func (h *handlers) clearCache(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if h.Cache != nil {
		if err := h.Cache.Clear(ctx); err != nil {
			h.logger.Error("cache clear failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear cache")
		}
	}

	removed := 0
	if h.Store != nil {
		n, err := store.ClearAll(ctx, h.Store)
		if err != nil {
			h.logger.Error("store clear failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear persisted state")
		}
		removed = n
	}
	return c.JSON(fiber.Map{"cleared": removed})
}

func (h *handlers) createGrid(c *fiber.Ctx) error {
	id, o := h.Grids.Create()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":   id,
		"view": o.View(),
	})
}

func (h *handlers) getGrid(c *fiber.Ctx) error {
	o, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(o.View())
}

// putGridBounds is debounced: the response carries the view before the new
// bounds are applied.
func (h *handlers) putGridBounds(c *fiber.Ctx) error {
	o, err := h.session(c)
	if err != nil {
		return err
	}

	var b grid.Bounds
	if err := c.BodyParser(&b); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid bounds body")
	}
	if err := validate.Struct(b); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	o.OnBoundsChanged(b)
	return c.Status(fiber.StatusAccepted).JSON(o.View())
}

type dayRequest struct {
	DayIndex int `json:"dayIndex" validate:"gte=0,lte=15"`
}

func (h *handlers) putGridDay(c *fiber.Ctx) error {
	o, err := h.session(c)
	if err != nil {
		return err
	}

	var req dayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid day body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	o.OnDayIndexChanged(req.DayIndex)
	return c.JSON(o.View())
}

func (h *handlers) retryGrid(c *fiber.Ctx) error {
	o, err := h.session(c)
	if err != nil {
		return err
	}
	o.OnRateLimitCleared()
	return c.JSON(o.View())
}

func (h *handlers) deleteGrid(c *fiber.Ctx) error {
	if !h.Grids.Close(c.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "grid session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) session(c *fiber.Ctx) (*grid.Orchestrator, error) {
	o, ok := h.Grids.Get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "grid session not found")
	}
	return o, nil
}

func predictionError(err error) error {
	switch {
	case weather.IsRateLimited(err):
		return fiber.NewError(fiber.StatusTooManyRequests, "weather service rate limit reached; try again shortly")
	case errors.Is(err, weather.ErrNoPredictions):
		return fiber.NewError(fiber.StatusNotFound, "no sunset predictions for requested location")
	default:
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch forecast")
	}
}

// parseCoordinates reads and validates the lat/lon query parameters.
func parseCoordinates(c *fiber.Ctx) (weather.Coordinates, error) {
	var coords weather.Coordinates

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return coords, errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return coords, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return coords, errors.New("lon must be a number")
	}

	coords = weather.Coordinates{Lat: lat, Lon: lon}
	if err := validate.Struct(coords); err != nil {
		return coords, err
	}
	return coords, nil
}
