package http

import (
	"context"
	"encoding/json"
	"strconv"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/usecase"
	"mongodb-orm/internal/shared/errors"
	"mongodb-orm/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"
)

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelHandler exposes registered models over REST, one route group per collection.
type ModelHandler struct {
	Registry  *usecase.Registry
	Resources []usecase.Resource
	Pinger    Pinger
	Log       logger.Logger
}

// NewModelHandler creates a handler serving resources.
func NewModelHandler(registry *usecase.Registry, resources []usecase.Resource, pinger Pinger, log logger.Logger) *ModelHandler {
	return &ModelHandler{
		Registry:  registry,
		Resources: resources,
		Pinger:    pinger,
		Log:       logger.OrNop(log).WithComponent("model_handler"),
	}
}

// RegisterRoutes mounts the health, model listing and CRUD routes.
func (h *ModelHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/models", h.ListModels)

	api := router.Group("/api")
	api.Get("/:collection", h.Query)
	api.Post("/:collection", h.Create)
	api.Get("/:collection/:id", h.Get)
	api.Put("/:collection/:id", h.Replace)
	api.Delete("/:collection/:id", h.Delete)
}

// Health pings the store when a Pinger is configured.
func (h *ModelHandler) Health(c *fiber.Ctx) error {
	if h.Pinger != nil {
		if err := h.Pinger.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "unavailable",
				"message": err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// ListModels returns every registered model and where it is stored.
func (h *ModelHandler) ListModels(c *fiber.Ctx) error {
	entries := h.Registry.Entries()
	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, fiber.Map{
			"model":      e.Name,
			"database":   e.Config.DatabaseName,
			"collection": e.Config.CollectionName,
		})
	}
	return c.JSON(fiber.Map{"models": out})
}

// Query runs the query string against the collection's model.
func (h *ModelHandler) Query(c *fiber.Ctx) error {
	res, err := h.resource(c)
	if err != nil {
		return h.writeError(c, err)
	}
	result, err := res.Query(c.UserContext(), ParseQuery(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(result)
}

// Get returns one document by identity.
func (h *ModelHandler) Get(c *fiber.Ctx) error {
	res, id, err := h.resourceAndID(c)
	if err != nil {
		return h.writeError(c, err)
	}
	doc, err := res.FetchByID(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	if doc == nil {
		return h.writeError(c, errors.NewNotFoundError("document"))
	}
	return c.JSON(doc)
}

// Create inserts the JSON body as a new document.
func (h *ModelHandler) Create(c *fiber.Ctx) error {
	res, err := h.resource(c)
	if err != nil {
		return h.writeError(c, err)
	}
	fields, err := bodyFields(c)
	if err != nil {
		return h.writeError(c, err)
	}
	doc, err := res.CreateRecord(c.UserContext(), fields)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// Replace overwrites an existing document. It never creates one.
func (h *ModelHandler) Replace(c *fiber.Ctx) error {
	res, id, err := h.resourceAndID(c)
	if err != nil {
		return h.writeError(c, err)
	}
	fields, err := bodyFields(c)
	if err != nil {
		return h.writeError(c, err)
	}
	doc, err := res.ReplaceRecord(c.UserContext(), id, fields)
	if err != nil {
		return h.writeError(c, err)
	}
	if doc == nil {
		return h.writeError(c, errors.NewNotFoundError("document"))
	}
	return c.JSON(doc)
}

// Delete removes a document by identity.
func (h *ModelHandler) Delete(c *fiber.Ctx) error {
	res, id, err := h.resourceAndID(c)
	if err != nil {
		return h.writeError(c, err)
	}
	deleted, err := res.DeleteByID(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	if !deleted {
		return h.writeError(c, errors.NewNotFoundError("document"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// resource finds the model currently stored in the :collection path segment.
func (h *ModelHandler) resource(c *fiber.Ctx) (usecase.Resource, error) {
	collection := c.Params("collection")
	for _, r := range h.Resources {
		e, err := r.Entry()
		if err != nil {
			continue
		}
		if e.Config.CollectionName == collection {
			return r, nil
		}
	}
	return nil, errors.NewNotFoundError("collection " + collection)
}

func (h *ModelHandler) resourceAndID(c *fiber.Ctx) (usecase.Resource, int64, error) {
	res, err := h.resource(c)
	if err != nil {
		return nil, 0, err
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return nil, 0, errors.NewValidationError("id must be an integer").WithDetail("id", c.Params("id"))
	}
	return res, id, nil
}

func bodyFields(c *fiber.Ctx) (model.Record, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return nil, errors.NewValidationError("request body must be a JSON object").WithCause(err)
	}
	normalizeNumbers(body)
	return model.Record(body), nil
}

func (h *ModelHandler) writeError(c *fiber.Ctx, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		err = errors.NewConflictError(err.Error()).WithCause(err)
	}
	status := errors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.Log.WithContext(c.UserContext()).WithFields(map[string]interface{}{
			"path":  c.Path(),
			"error": err.Error(),
		}).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   errorCode(err),
		"message": err.Error(),
	})
}

func errorCode(err error) string {
	switch {
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsValidation(err):
		return "invalid_argument"
	case errors.IsConfiguration(err):
		return "failed_precondition"
	case errors.IsConflict(err):
		return "already_exists"
	default:
		return "internal"
	}
}
