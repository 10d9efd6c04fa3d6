package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins that may call the API. A "*" entry
	// allows any origin, which is also the behavior in development.
	AllowedOrigins []string

	// AllowedMethods defaults to GET, POST, PUT, PATCH, DELETE, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders defaults to Accept, Authorization, Content-Type,
	// X-Correlation-ID, X-User-ID.
	AllowedHeaders []string

	// ExposedHeaders lists response headers the browser may read.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds, 3600 when zero.
	MaxAge int

	// AllowCredentials enables cookies and auth headers on cross-origin calls.
	AllowCredentials bool

	// Environment gates the wildcard: "development" implies allow-all even
	// without an explicit "*" entry.
	Environment string
}

// DefaultCORSConfig returns an allow-all configuration for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-User-ID"},
		ExposedHeaders: []string{"X-Correlation-ID", "X-User-ID"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// corsHeaders holds the precomputed header values shared by every request.
type corsHeaders struct {
	methods   string
	headers   string
	exposed   string
	maxAge    string
	wildcard  bool
	originSet map[string]struct{}
}

func buildCORSHeaders(cfg CORSConfig) corsHeaders {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-User-ID"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	h := corsHeaders{
		methods:   strings.Join(cfg.AllowedMethods, ", "),
		headers:   strings.Join(cfg.AllowedHeaders, ", "),
		exposed:   strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:    strconv.Itoa(cfg.MaxAge),
		wildcard:  cfg.Environment == "development",
		originSet: make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			h.wildcard = true
		}
		h.originSet[o] = struct{}{}
	}
	return h
}

// CORS returns middleware that answers preflight requests and sets the
// cross-origin headers on every response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	hdrs := buildCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case hdrs.wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := hdrs.originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", hdrs.methods)
			w.Header().Set("Access-Control-Allow-Headers", hdrs.headers)
			if hdrs.exposed != "" {
				w.Header().Set("Access-Control-Expose-Headers", hdrs.exposed)
			}
			w.Header().Set("Access-Control-Max-Age", hdrs.maxAge)
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
