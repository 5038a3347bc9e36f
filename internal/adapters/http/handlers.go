package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/taskpin/internal/core/domain"
)

// taskTuple is the store's wire encoding of a task: [id, title, lat, lng].
// Consumers index it positionally.
func taskTuple(t domain.Task) []interface{} {
	return []interface{}{t.ID, t.Title, t.Location.Lat, t.Location.Lon}
}

// ---------------------------------------------------------------------------
// Task store API (tuple wire format)
// ---------------------------------------------------------------------------

// ListTasksHandler returns every task as [id, title, lat, lng].
func ListTasksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tasks, err := deps.Tasks.ListTasks(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}

		rows := make([][]interface{}, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, taskTuple(t))
		}
		return c.JSON(rows)
	}
}

type addTaskRequest struct {
	Title string   `json:"title"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
}

// AddTaskHandler creates a task from {title, lat, lng}.
func AddTaskHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req addTaskRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var loc *domain.GeoPoint
		if req.Lat != nil && req.Lng != nil {
			loc = &domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lng}
		}

		task, err := deps.Tasks.CreateTask(c.UserContext(), req.Title, loc)
		if err != nil {
			return errFromDomain(c, err)
		}

		LoggerFromCtx(c.UserContext()).Info("task saved", "task_id", task.ID, "title", task.Title)
		return c.JSON(fiber.Map{
			"message": "Task Saved",
			"task":    taskTuple(task),
		})
	}
}

// DeleteTaskHandler removes a task. Unknown ids succeed.
func DeleteTaskHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || id <= 0 {
			return errBadRequest(c, "task id must be a positive integer")
		}

		if err := deps.Tasks.DeleteTask(c.UserContext(), id); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"message": "Task Deleted!"})
	}
}

// ---------------------------------------------------------------------------
// v1 API (named fields)
// ---------------------------------------------------------------------------

// ListTasksV1Handler returns tasks with named fields and offset/limit pagination.
func ListTasksV1Handler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c)

		tasks, total, err := deps.Tasks.ListPage(c.UserContext(), offset, limit)
		if err != nil {
			return errFromDomain(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: tasks, Pagination: pg})
	}
}

// NearbyTasksHandler returns tasks ordered nearest-first from lat/lng,
// optionally limited to radius_m meters.
func NearbyTasksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng are required")
		}
		limit := c.QueryInt("limit", 0)
		pos := domain.GeoPoint{Lat: lat, Lon: lng}

		var ranked []domain.RankedTask
		var err error
		if radius := c.Query("radius_m"); radius != "" {
			r, perr := strconv.ParseFloat(radius, 64)
			if perr != nil {
				return errBadRequest(c, "radius_m must be a number")
			}
			ranked, err = deps.Tasks.NearbyWithin(c.UserContext(), pos, r)
		} else {
			ranked, err = deps.Tasks.Nearby(c.UserContext(), pos)
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		if limit > 0 && len(ranked) > limit {
			ranked = ranked[:limit]
		}
		return c.JSON(ranked)
	}
}

// GeocodeHandler resolves a free-text place query.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Geocode == nil {
			return newError(c, fiber.StatusServiceUnavailable, "unavailable", "geocoding not configured")
		}
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 1)
		if limit == 1 {
			place, err := deps.Geocode.Locate(c.UserContext(), query)
			if err != nil {
				return errFromDomain(c, err)
			}
			return c.JSON([]domain.Place{place})
		}

		places, err := deps.Geocode.Search(c.UserContext(), query, limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(places)
	}
}
