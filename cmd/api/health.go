package main

import "net/http"

// healthCheckHandler godoc
//
//	@Summary		Health check
//	@Description	Reports status, environment, version and the number of payments being polled
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":    "ok",
		"env":       app.config.env,
		"version":   version,
		"in_flight": len(app.watcher.InFlight()),
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
