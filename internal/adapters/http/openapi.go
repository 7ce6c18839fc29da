package httpadapter

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
)

//go:embed openapi.yaml
var openAPIDocument []byte

// requestValidator checks JSON bodies of documented operations against openapi.yaml.
type requestValidator struct {
	routes map[string]*routers.Route
}

func newRequestValidator() (*requestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	routes := make(map[string]*routers.Route)
	for _, path := range doc.Paths.InMatchingOrder() {
		item := doc.Paths.Find(path)
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			routes[method+" "+path] = &routers.Route{
				Spec:      doc,
				Path:      path,
				PathItem:  item,
				Method:    method,
				Operation: op,
			}
		}
	}
	return &requestValidator{routes: routes}, nil
}

func (v *requestValidator) validate(ctx context.Context, r *http.Request, path string) error {
	route, ok := v.routes[r.Method+" "+path]
	if !ok {
		return nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return invalidInput("read request body", err)
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: map[string]string{},
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	err = openapi3filter.ValidateRequest(ctx, input)
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return invalidInput("validate request", err)
	}
	return nil
}

// middleware validates requests for the documented operation at path.
func (v *requestValidator) middleware(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.validate(r.Context(), r, path); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
