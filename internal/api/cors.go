package api

import (
	"net/http"

	"github.com/rs/cors"
)

// CorsSettings allows the authoring front end to call the API from the browser.
func CorsSettings(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization", "If-Match"},
		ExposedHeaders:   []string{"ETag"},
	})
}
