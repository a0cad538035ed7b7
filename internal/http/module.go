// Package http holds what the composition root hands to the router: the App
// dependencies and the Module contract feature packages implement.
package http

import "github.com/gin-gonic/gin"

// Module is a feature package that mounts its own routes.
type Module interface {
	// Name is logged once the routes are mounted.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext exposes the route groups modules mount on.
type RouterContext struct {
	// V1 is /api/v1, rate limited but unauthenticated.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind the bearer token check; handlers read the
	// tenant from the identity it sets.
	Protected *gin.RouterGroup
}
