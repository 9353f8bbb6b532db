package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Handler serves the swagger UI backed by the OpenAPI document mounted at
// the repository root.
func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"),
	)
}
