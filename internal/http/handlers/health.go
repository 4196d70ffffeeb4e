package handlers

import (
	"net/http"

	"mosaic/internal/domain"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Plans lists the public plan catalog.
func (a *App) Plans(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"plans": domain.Catalog()})
}
