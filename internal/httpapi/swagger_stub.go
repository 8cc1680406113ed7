//go:build !swagger

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"

	_ "llmhost/docs"
)

// MountSwagger serves only the OpenAPI document; the UI needs -tags=swagger.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})
}
