package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
)

type explainRequest struct {
	UserID       string   `json:"userId"`
	Categories   []string `json:"categories"`
	Regions      []string `json:"regions"`
	Difficulties []string `json:"difficulties"`
	TourTitles   []string `json:"tourTitles"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		apiKey  = flag.String("key", "", "require this X-API-Key when set")
		logReqs = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/explain", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		var req explainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if *logReqs {
			log.Printf("explain user=%s tours=%d", req.UserID, len(req.TourTitles))
		}

		facets := append(append(append([]string{}, req.Categories...), req.Regions...), req.Difficulties...)
		if len(facets) == 0 || len(req.TourTitles) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		text := fmt.Sprintf("Picked because you liked %s. Start with %s.",
			strings.Join(facets, ", "), req.TourTitles[0])
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"text": text}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	log.Printf("mock textgen listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
