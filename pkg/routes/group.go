// Package routes describes handler route groups and registers them on a ServeMux.
package routes

import "net/http"

// Route is a single method + pattern registration.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group is a set of routes sharing a URL prefix.
type Group struct {
	Prefix      string
	Description string
	Routes      []Route
	Children    []Group
}

// Register mounts every group under basePath on mux.
func Register(mux *http.ServeMux, basePath string, groups ...Group) {
	for _, g := range groups {
		registerGroup(mux, basePath, g)
	}
}

func registerGroup(mux *http.ServeMux, parent string, g Group) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		mux.HandleFunc(r.Method+" "+prefix+r.Pattern, r.Handler)
	}
	for _, child := range g.Children {
		registerGroup(mux, prefix, child)
	}
}
