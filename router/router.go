// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/controller"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/middleware"
)

// Controllers bundles the API surface the router exposes.
type Controllers struct {
	Pipeline  *controller.PipelineController
	Exception *controller.ExceptionController
}

func SetupRouter(
	controllers *Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	api := router.Group("/api/v1")

	controllers.Pipeline.RegisterRoutes(api)
	controllers.Exception.RegisterRoutes(api)

	return router
}
