package rest

import "github.com/gin-gonic/gin"

type HttpMethod int

const (
	GET HttpMethod = iota
	POST
	PUT
	PATCH
	DELETE
)

func (m HttpMethod) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case PATCH:
		return "PATCH"
	case DELETE:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

type Route struct {
	Method      HttpMethod
	Path        string
	HandlerFunc gin.HandlerFunc
	Group       string
}

func NewRoute(method HttpMethod, group, path string, handler gin.HandlerFunc) Route {
	return Route{
		Method:      method,
		Path:        path,
		Group:       group,
		HandlerFunc: handler,
	}
}

// Register mounts routes on the router, creating one group per distinct Group value.
// An empty Group mounts the route at the root.
func Register(router gin.IRouter, middlewares []Middleware, routes ...Route) error {
	groups := map[string]gin.IRouter{}
	group := func(name string) gin.IRouter {
		if g, ok := groups[name]; ok {
			return g
		}
		var g gin.IRouter = router
		if name != "" {
			g = router.Group("/" + name)
		}
		for _, m := range middlewares {
			if m.Group == name {
				g.Use(m.Handler)
			}
		}
		groups[name] = g
		return g
	}

	for _, r := range routes {
		g := group(r.Group)
		switch r.Method {
		case GET:
			g.GET(r.Path, r.HandlerFunc)
		case POST:
			g.POST(r.Path, r.HandlerFunc)
		case PUT:
			g.PUT(r.Path, r.HandlerFunc)
		case PATCH:
			g.PATCH(r.Path, r.HandlerFunc)
		case DELETE:
			g.DELETE(r.Path, r.HandlerFunc)
		default:
			return &UnknownMethodError{Method: r.Method, Path: r.Path}
		}
	}
	return nil
}

type UnknownMethodError struct {
	Method HttpMethod
	Path   string
}

func (e *UnknownMethodError) Error() string {
	return "unrecognized HTTP method " + e.Method.String() + " for " + e.Path
}
