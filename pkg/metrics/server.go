package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartServer runs the Prometheus scrape endpoint on its own port so
// operational traffic stays off the query API. The returned function shuts
// the server down.
func StartServer(port int) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/", landing)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return func(ctx context.Context) error {
		slog.Info("metrics server shutting down")
		return server.Shutdown(ctx)
	}
}

// landing points operators at the scrape endpoint and the service surfaces
// served on the main port.
func landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><body>
<h1>docsearch metrics</h1>
<p><a href="/metrics">/metrics</a> Prometheus scrape endpoint</p>
<p>Query API (main port): /api/v1/search, /api/v1/index/stats, /api/v1/cache/stats</p>
<p>Probes (main port): /health/live, /health/ready</p>
</body></html>`)
}
