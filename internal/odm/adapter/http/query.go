package http

import (
	"math"
	"strconv"
	"strings"

	"mongodb-orm/internal/odm/domain/model"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// ParseQuery turns the request's query string into a loose model.Query.
// Filter values are coerced to integers, floats and booleans where they parse;
// control keys are passed through for the translator to validate.
// A "flat" parameter is folded into the projection.
func ParseQuery(c *fiber.Ctx) model.Query {
	q := model.Query{}
	flat := false
	for key, raw := range c.Queries() {
		switch key {
		case model.KeyFlat:
			flat, _ = strconv.ParseBool(raw)
		case model.KeyProjection:
			projection := bson.M{}
			for _, f := range strings.Split(raw, ",") {
				if f = strings.TrimSpace(f); f != "" {
					projection[f] = 1
				}
			}
			q[key] = projection
		case model.KeySortBy, model.KeyDistinct, model.KeyOnlyCount, model.KeyLimit, model.KeySkip:
			q[key] = raw
		default:
			q[key] = coerce(raw)
		}
	}
	if flat {
		projection, ok := q[model.KeyProjection].(bson.M)
		if !ok {
			projection = bson.M{}
			q[model.KeyProjection] = projection
		}
		projection[model.KeyFlat] = true
	}
	return q
}

func coerce(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// normalizeNumbers rewrites integral JSON numbers as int64 so they round-trip into
// integer fields and match integer filters.
func normalizeNumbers(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]interface{}:
		for k, inner := range x {
			x[k] = normalizeNumbers(inner)
		}
		return x
	case []interface{}:
		for i, inner := range x {
			x[i] = normalizeNumbers(inner)
		}
		return x
	default:
		return v
	}
}
