package httpapi

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Liebig-2005/farmassist/internal/advisory"
	"github.com/Liebig-2005/farmassist/internal/geocode"
	"github.com/Liebig-2005/farmassist/internal/market"
	"github.com/Liebig-2005/farmassist/internal/search"
	"github.com/Liebig-2005/farmassist/internal/store"
	"github.com/Liebig-2005/farmassist/internal/weather"
)

var validate = validator.New()

// Geocoder looks up candidate locations for a free-text query.
type Geocoder interface {
	Search(ctx context.Context, name string, limit int) ([]geocode.Place, error)
}

// WeatherService provides one-shot reports and the cached default report.
type WeatherService interface {
	Current(ctx context.Context, loc weather.Location) (weather.Report, error)
	Latest() (weather.Report, error)
}

// MarketService looks up commodity prices.
type MarketService interface {
	Prices(ctx context.Context, q market.Query) ([]market.PriceRecord, error)
}

// AdvisoryService proxies the chatbot/scanner backend.
type AdvisoryService interface {
	Chat(ctx context.Context, message string) (string, error)
	Scan(ctx context.Context, filename string, image io.Reader) (advisory.ScanResult, error)
}

// Deps bundles everything the HTTP handlers need.
type Deps struct {
	Geocoder     Geocoder
	Region       geocode.Region
	Weather      WeatherService
	Market       MarketService
	Advisory     AdvisoryService
	Sessions     *store.SessionStore
	NewSession   func() *search.Assistant
	SuggestLimit int
	Logger       *zap.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations/suggest", suggestHandler(deps))

	sessions := v1.Group("/search/sessions")
	sessions.Post("/", createSessionHandler(deps))
	sessions.Get("/:id", sessionSnapshotHandler(deps))
	sessions.Post("/:id/input", sessionInputHandler(deps))
	sessions.Post("/:id/submit", sessionSubmitHandler(deps))
	sessions.Post("/:id/select", sessionSelectHandler(deps))
	sessions.Post("/:id/weather/retry", sessionRetryWeatherHandler(deps))

	v1.Get("/weather/current", weatherHandler(deps))
	v1.Get("/market/prices", marketHandler(deps))

	v1.Post("/advisory/chat", chatHandler(deps))
	v1.Post("/advisory/scan", scanHandler(deps))
}

// suggestQuery holds query parameters for the stateless suggest endpoint.
type suggestQuery struct {
	Query string `validate:"required,min=2"`
	Limit int    `validate:"omitempty,min=1,max=10"`
}

func suggestHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := suggestQuery{Query: c.Query("q")}
		if limitStr := c.Query("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid limit parameter")
			}
			q.Limit = limit
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		limit := q.Limit
		if limit == 0 {
			limit = deps.SuggestLimit
		}

		places, err := deps.Geocoder.Search(c.UserContext(), q.Query, limit)
		if err != nil {
			// Suggestions are best-effort; failures collapse to an empty list.
			deps.Logger.Debug("suggest lookup failed", zap.String("query", q.Query), zap.Error(err))
			return c.JSON(fiber.Map{"results": []geocode.Place{}})
		}

		results := make([]geocode.Place, 0, len(places))
		for _, p := range places {
			if deps.Region.Allows(p.Country, p.CountryCode) {
				results = append(results, p)
			}
		}

		return c.JSON(fiber.Map{"results": results})
	}
}

func createSessionHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assistant := deps.NewSession()
		id := deps.Sessions.Create(assistant)

		// Initial weather for the default location; not worth blocking
		// session creation on.
		go assistant.Bootstrap(context.Background())

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    id,
			"state": assistant.Snapshot(),
		})
	}
}

func sessionSnapshotHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assistant, err := lookupSession(deps, c)
		if err != nil {
			return err
		}
		return c.JSON(assistant.Snapshot())
	}
}

type inputRequest struct {
	Text string `json:"text"`
}

func sessionInputHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assistant, err := lookupSession(deps, c)
		if err != nil {
			return err
		}

		var req inputRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		assistant.Input(req.Text)
		return c.Status(fiber.StatusAccepted).JSON(assistant.Snapshot())
	}
}

type submitRequest struct {
	Query string `json:"query"`
}

func sessionSubmitHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assistant, err := lookupSession(deps, c)
		if err != nil {
			return err
		}

		var req submitRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}

		query := req.Query
		if query == "" {
			query = assistant.Query()
		}

		if err := assistant.Submit(c.UserContext(), query); err != nil {
			return searchError(err)
		}
		return c.JSON(assistant.Snapshot())
	}
}

type selectRequest struct {
	Name string `json:"name" validate:"required"`
}

func sessionSelectHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assistant, err := lookupSession(deps, c)
		if err != nil {
			return err
		}

		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := assistant.Select(c.UserContext(), geocode.Place{Name: req.Name}); err != nil {
			return searchError(err)
		}
		return c.JSON(assistant.Snapshot())
	}
}

func sessionRetryWeatherHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assistant, err := lookupSession(deps, c)
		if err != nil {
			return err
		}
		assistant.RetryWeather(c.UserContext())
		return c.JSON(assistant.Snapshot())
	}
}

func weatherHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		latStr := c.Query("lat")
		lonStr := c.Query("lon")

		if latStr == "" && lonStr == "" {
			report, err := deps.Weather.Latest()
			if err != nil {
				return fiber.NewError(fiber.StatusNotFound, "no weather data available yet")
			}
			return c.JSON(report)
		}

		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid lat parameter")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid lon parameter")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid coordinates range")
		}

		report, err := deps.Weather.Current(c.UserContext(), weather.Location{Latitude: lat, Longitude: lon})
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather data: "+err.Error())
		}
		return c.JSON(report)
	}
}

func marketHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := market.Query{
			State:     c.Query("state"),
			District:  c.Query("district"),
			Commodity: c.Query("commodity"),
		}
		if limitStr := c.Query("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid limit parameter")
			}
			q.Limit = limit
		}

		records, err := deps.Market.Prices(c.UserContext(), q)
		if err != nil {
			switch {
			case errors.Is(err, market.ErrForbidden):
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			case errors.Is(err, market.ErrBadFilters):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, market.ErrNoRecords):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			default:
				return fiber.NewError(fiber.StatusBadGateway, "failed to fetch market prices")
			}
		}

		return c.JSON(fiber.Map{"records": records})
	}
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

func chatHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reply, err := deps.Advisory.Chat(c.UserContext(), req.Message)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{"response": reply})
	}
}

func scanHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "image file is required")
		}

		file, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unable to read uploaded image")
		}
		defer file.Close()

		result, err := deps.Advisory.Scan(c.UserContext(), header.Filename, file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(result)
	}
}

func lookupSession(deps Deps, c *fiber.Ctx) (*search.Assistant, error) {
	assistant, err := deps.Sessions.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "search session not found")
		}
		return nil, err
	}
	return assistant, nil
}

// searchError maps resolver failures onto HTTP statuses, preserving the
// user-facing message.
func searchError(err error) error {
	var serr *search.Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case search.KindNotFound:
			return fiber.NewError(fiber.StatusNotFound, serr.Message)
		case search.KindRegionRejected:
			return fiber.NewError(fiber.StatusUnprocessableEntity, serr.Message)
		default:
			return fiber.NewError(fiber.StatusBadGateway, serr.Message)
		}
	}
	return err
}
