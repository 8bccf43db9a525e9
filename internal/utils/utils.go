package utils

import (
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
)

func GetRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if pattern := rctx.RoutePattern(); pattern != "" {
		// Pattern is already available
		return pattern
	}

	routePath := r.URL.Path

	if r.URL.RawPath != "" {
		routePath = r.URL.RawPath
	}

	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, routePath) {
		return "undefined"
	}

	// tctx has the updated pattern, since Match mutates it
	return tctx.RoutePattern()
}

// UnwrapInterfaceToPointer unwraps an interface to a pointer of the given type.
func UnwrapInterfaceToPointer[T any](i interface{}) *T {
	t, ok := i.(*T)
	if ok {
		return t
	}
	return nil
}

// IsEmpty checks if a value is empty.
func IsEmpty[T any](v T) bool {
	valueType := reflect.TypeOf(v)
	if valueType == nil { // this condition will be true when v is nil and valueType is either `any` or `interface{}`
		return true
	}

	return reflect.DeepEqual(v, reflect.Zero(valueType).Interface())
}
