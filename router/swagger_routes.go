package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/priyxstudio/sgo/docs/swagger"
)

const (
	docsSpecPath = "/api/docs/openapi.json"
	docsUIPath   = "/api/docs/ui"
)

// registerDocumentationRoutes exposes the generated OpenAPI document and the
// Swagger UI that renders it.
func registerDocumentationRoutes(routes gin.IRoutes) {
	toUI := func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, docsUIPath+"/index.html")
	}

	routes.GET(docsSpecPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swagger.SwaggerInfo.ReadDoc()))
	})
	routes.GET("/api/docs", toUI)
	routes.GET(docsUIPath, toUI)
	routes.GET(docsUIPath+"/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL(docsSpecPath),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))
}
