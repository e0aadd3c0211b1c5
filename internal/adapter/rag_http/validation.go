package rag_http

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openapiSpec []byte

// routeCacheKey identifies a resolved route by method and raw path.
// The cached route is the one used for validation, but FindRoute still
// runs on every request to recover path parameters, so a cache hit does
// not skip route matching.
type routeCacheKey struct {
	method string
	path   string
}

// RequestValidator checks incoming requests against the embedded
// OpenAPI document before a handler ever sees them, rejecting malformed
// bodies (missing required fields, wrong types) with 400 instead of
// letting them reach usecase code as a zero-valued struct.
type RequestValidator struct {
	router     routers.Router
	routeCache *lru.Cache[routeCacheKey, *routers.Route]
}

func NewRequestValidator() (*RequestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	cache, err := lru.New[routeCacheKey, *routers.Route](256)
	if err != nil {
		return nil, fmt.Errorf("create route cache: %w", err)
	}

	return &RequestValidator{router: router, routeCache: cache}, nil
}

// Middleware validates every request body against the operation the
// request resolves to. Requests to paths outside the spec (health
// checks, metrics) pass through unvalidated.
func (v *RequestValidator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		// openapi3filter.ValidateRequest drains req.Body to validate it
		// against the schema; buffer it so it can be replayed for the
		// handler once validation has consumed its own copy.
		var bodyBytes []byte
		if req.Body != nil {
			var err error
			bodyBytes, err = io.ReadAll(req.Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "read request body: " + err.Error()})
			}
			_ = req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		key := routeCacheKey{method: req.Method, path: req.URL.Path}
		route, cached := v.routeCache.Get(key)
		var pathParams map[string]string
		if !cached {
			var err error
			route, pathParams, err = v.router.FindRoute(req)
			if err != nil {
				// Unknown to the spec: let the handler (or echo's 404) decide.
				return next(c)
			}
			v.routeCache.Add(key, route)
		} else {
			_, pathParams, _ = v.router.FindRoute(req)
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		return next(c)
	}
}
