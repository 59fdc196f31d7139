// Package http wraps chi for the ops surface: routing, server lifecycle, JSON envelopes
package http

import "net/http"

// Handler is the platform handler type used everywhere
type Handler = func(http.ResponseWriter, *http.Request)

// Router is the minimal surface area we mount against
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)

	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Route(pattern string, fn func(Router))

	Mux() http.Handler
}
