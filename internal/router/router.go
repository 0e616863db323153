package router

import (
	"net/http"
	"slices"
	"sort"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router registers method patterns on an http.ServeMux. Each route gets the
// router's middleware chain, so middleware runs after the mux has matched
// and can read r.Pattern and r.PathValue.
type Router struct {
	mux    *http.ServeMux
	chain  []Middleware
	routes *[]string
}

func New(middleware ...Middleware) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		chain:  middleware,
		routes: new([]string),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) Get(pattern string, h http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, middleware...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, middleware...)
}

func (r *Router) Put(pattern string, h http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPut, pattern, h, middleware...)
}

func (r *Router) Delete(pattern string, h http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodDelete, pattern, h, middleware...)
}

// Handle registers h for "METHOD pattern". Registering the same route twice
// panics, as http.ServeMux does.
func (r *Router) Handle(method, pattern string, h http.Handler, middleware ...Middleware) {
	route := method + " " + pattern
	r.mux.Handle(route, r.wrap(h, middleware))
	*r.routes = append(*r.routes, route)
}

// Group shares the mux and route table and adds middleware for the routes
// registered through it.
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		chain:  append(slices.Clone(r.chain), middleware...),
		routes: r.routes,
	}
}

// Routes lists every registered "METHOD pattern", sorted.
func (r *Router) Routes() []string {
	out := slices.Clone(*r.routes)
	sort.Strings(out)
	return out
}

// NotFound answers every request no route matches. Without it the mux
// answers 404 in plain text, and 405 for a known path with the wrong method.
func (r *Router) NotFound(h http.HandlerFunc) {
	r.mux.Handle("/", r.wrap(h, nil))
}

// Static serves dir under prefix with GET, e.g. locally stored invoices.
func (r *Router) Static(prefix, dir string) {
	clean := strings.TrimSuffix(prefix, "/")
	files := http.StripPrefix(clean, http.FileServer(http.Dir(dir)))
	r.Handle(http.MethodGet, clean+"/{file...}", files)
}

// wrap applies the chain so the first middleware is outermost.
func (r *Router) wrap(h http.Handler, middleware []Middleware) http.Handler {
	combined := append(slices.Clone(r.chain), middleware...)
	for i := len(combined) - 1; i >= 0; i-- {
		h = combined[i](h)
	}
	return h
}
