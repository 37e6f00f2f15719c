package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

// Export streams a zip archive of the session snapshot and layer manifest.
func (a *App) Export(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	data, err := a.Studio.Export(r.Context(), sid)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, sid))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
