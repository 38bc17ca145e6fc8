package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"stashkit/internal/cache"
	"stashkit/internal/config"
	"stashkit/internal/manifest"
	"stashkit/internal/watch"
)

func main() {
	port := flag.String("port", ":8080", "server port")
	cfgFile := flag.String("config", "", "config file (default: ./stash.yaml)")
	flag.Parse()

	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	origin, err := cfg.BuildStore()
	if err != nil {
		log.Fatalf("build store: %v", err)
	}
	st := cache.NewCachedStore(origin, cache.DefaultConfig())

	var m *manifest.Manifest
	if cfg.Manifest != "" {
		m, err = manifest.Load(cfg.Manifest)
		if err != nil {
			log.Fatalf("load manifest: %v", err)
		}
	}

	hub := watch.NewHub()
	srv := newServer(st, hub, m)

	// h2c lets plain-HTTP CI clients speak HTTP/2.
	h2s := &http2.Server{}
	httpSrv := &http.Server{
		Addr:    *port,
		Handler: h2c.NewHandler(buildMux(srv), h2s),
	}
	log.Printf("stashd listening on %s (backend=%s)", *port, cfg.Backend)
	log.Fatal(httpSrv.ListenAndServe())
}

func buildMux(s *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/stashes/{name}", s.handleUpload)
	mux.HandleFunc("GET /api/stashes/{name}", s.handleList)
	mux.HandleFunc("GET /api/stashes/{name}/{id}", s.handleDownload)
	mux.HandleFunc("DELETE /api/stashes/{name}", s.handleDelete)
	mux.HandleFunc("POST /api/prune", s.handlePrune)
	mux.HandleFunc("/api/watch", watch.Handler(s.hub))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
