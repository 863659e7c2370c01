package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aria-lang/remora-go/api/middleware"
)

// NewRouter mounts every endpoint. Model endpoints are only mounted when
// inf is non-nil.
func NewRouter(log zerolog.Logger, inf *Inference, timeout time.Duration) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	if timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/align", AlignHandler)

		r.Route("/sequence", func(r chi.Router) {
			r.Post("/reverse-complement", ReverseComplementHandler)
			r.Post("/focus", FocusPositionsHandler)
		})

		r.Post("/kmer/count", KMerCountHandler)
		r.Post("/quality/filter", FilterReadHandler)

		if inf != nil {
			r.Get("/model", inf.ModelHandler)
			r.Post("/call", inf.CallHandler)
			r.Post("/call/duplex", inf.DuplexHandler)
		}
	})

	r.Get("/", homeHandler)
	return r
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>remora API</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 800px; margin: 2rem auto; padding: 0 1rem; }
        pre { background: #f3f4f6; padding: 1rem; border-radius: 0.5rem; overflow-x: auto; }
        .endpoint { margin: 1rem 0; padding: 1rem; border: 1px solid #e5e7eb; border-radius: 0.5rem; }
        .method { display: inline-block; padding: 0.25rem 0.5rem; background: #10b981; color: white; border-radius: 0.25rem; font-size: 0.875rem; }
    </style>
</head>
<body>
    <h1>remora API</h1>
    <p>Signal-level modified base calling.</p>

    <div class="endpoint">
        <span class="method">GET</span> <code>/api/model</code>
        <p>Metadata of the served checkpoint.</p>
    </div>

    <div class="endpoint">
        <span class="method">POST</span> <code>/api/call</code>
        <p>Per-position class probabilities for one read.</p>
        <pre>{"read_id": "r1", "signal": [...], "sequence": "ACGT", "moves": [1,0,1,0,1,0,1,0], "stride": 1}</pre>
    </div>

    <div class="endpoint">
        <span class="method">POST</span> <code>/api/call/duplex</code>
        <p>Combined calls for a template and complement read.</p>
        <pre>{"template": {...}, "complement": {...}}</pre>
    </div>

    <div class="endpoint">
        <span class="method">POST</span> <code>/api/align</code>
        <p>Align basecalls to a reference.</p>
        <pre>{"read": "ACGTACGT", "reference": "ACGTTACGT", "mode": "semi-global"}</pre>
    </div>

    <div class="endpoint">
        <span class="method">POST</span> <code>/api/sequence/focus</code>
        <p>Positions selected by motifs.</p>
        <pre>{"sequence": "ACGTACGT", "motifs": ["CG:0"]}</pre>
    </div>
</body>
</html>`))
}
