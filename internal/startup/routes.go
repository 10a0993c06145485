package startup

import (
	"cmp"
	"slices"
	"strings"

	"media-converter/internal/logging"

	"github.com/gorilla/mux"
)

// RouteInfo describes one method/path pair registered on the router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes walks router and returns one entry per method. Routes without
// a method matcher are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the HTTP section. The route table is only printed at
// debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		logRouteTable(router)
	}

	health := "OFF (set LOG_HEALTH_CHECKS=true to enable)"
	if logHealthChecks {
		health = "ON"
	}
	logging.Info("  Request logging:     W3C extended format")
	logging.Info("  Health probe logs:   %s", health)
}

func logRouteTable(router *mux.Router) {
	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	slices.SortStableFunc(routes, func(a, b RouteInfo) int {
		return cmp.Compare(getRouteGroup(a.Path), getRouteGroup(b.Path))
	})

	logging.Debug("  Registered routes (%d total):", len(routes))
	group := "\x00"
	for _, r := range routes {
		if g := getRouteGroup(r.Path); g != group {
			group = g
			logging.Debug("  [%s]", cmp.Or(g, "root"))
		}
		logging.Debug("    %-6s %s", r.Method, r.Path)
	}
}

// getRouteGroup returns the first path segment, or "api/<segment>" for
// routes under /api.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		sub, _, _ := strings.Cut(rest, "/")
		return "api/" + sub
	}
	return first
}
