// Package http hosts the HTTP composition layer: the router, shared route
// groups and the module contract every bounded context implements.
package http

import "github.com/gin-gonic/gin"

// RouterContext carries the route groups modules attach their endpoints to.
type RouterContext struct {
	Engine *gin.Engine

	// V1 is the public /api/v1 group. Only webhook-style endpoints with
	// their own auth (shared secret) belong here.
	V1 *gin.RouterGroup

	// Protected requires a valid access token with tenant scope.
	Protected *gin.RouterGroup

	// Admin additionally requires the ADMIN role.
	Admin *gin.RouterGroup
}

// Module is implemented by each bounded context to register its routes.
type Module interface {
	RegisterRoutes(rc *RouterContext)
}
