package handler

import "net/http"

// HandleHealth serves GET /. Load balancers and the SPA's dev proxy poll it.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("server is running..."))
}
