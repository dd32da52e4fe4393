// Command backroom-server is a minimal HTTP demo over the backroom client.
// It exposes a handful of endpoints for poking at the store and reports; it
// is not the product's API surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
	"github.com/backroom-io/backroom/pkg/backroom"
)

var client *backroom.Client

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	config := backroom.DefaultConfig()
	if *configPath != "" {
		config, err = backroom.LoadConfig(*configPath)
		if err != nil {
			zap.S().Fatalw("failed to load config", "path", *configPath, "error", err)
		}
	}

	client, err = backroom.NewClient(config)
	if err != nil {
		zap.S().Fatalw("failed to create client", "error", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		zap.S().Fatalw("failed to start client", "error", err)
	}
	defer client.Stop()

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/products", productsHandler)
	http.HandleFunc("/orders", ordersHandler)
	http.HandleFunc("/reports/dashboard", dashboardHandler)

	zap.S().Infow("backroom demo server listening", "addr", *addr, "data_dir", config.DataDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := http.ListenAndServe(*addr, nil); err != nil {
			zap.S().Fatalw("http server failed", "error", err)
		}
	}()
	<-sigChan
	zap.S().Infow("shutting down")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvariant):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func productsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		page := client.Pagination(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))
		products, err := client.Products().Query(ctx, core.Q().
			Sort(core.FieldCreatedAt, core.Desc).
			Page(page.Offset, page.Limit))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var fields core.Record
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		product, err := client.Products().Create(ctx, fields)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func ordersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var input repo.OrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	order, err := client.Orders().CreateOrder(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	dashboard, err := client.Reports().GetDashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
