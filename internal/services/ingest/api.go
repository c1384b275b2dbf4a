package ingest

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// NewHTTPMux exposes the cache's read operations for manual inspection,
// plus the administrative clear.
//
//	GET    /messages/latest?tenant=T1
//	GET    /messages/recent?tenant=T1&limit=50
//	GET    /messages/range?tenant=T1&start=<ms>&end=<ms>
//	DELETE /cache?tenant=T1 | /cache?all=true
func NewHTTPMux(cache *RecentMessageCache) *http.ServeMux {
	mux := http.NewServeMux()

	tenantOf := func(r *http.Request) string {
		t := strings.TrimSpace(r.URL.Query().Get("tenant"))
		if t == "" {
			return DefaultTenant
		}
		return t
	}

	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/messages/latest", func(w http.ResponseWriter, r *http.Request) {
		m := cache.Latest(r.Context(), tenantOf(r))
		if m == nil {
			http.Error(w, `{"error":"no messages"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, m)
	})

	mux.HandleFunc("/messages/recent", func(w http.ResponseWriter, r *http.Request) {
		limit := int64(50)
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		writeJSON(w, cache.Recent(r.Context(), tenantOf(r), limit))
	})

	mux.HandleFunc("/messages/range", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err1 := strconv.ParseInt(q.Get("start"), 10, 64)
		end, err2 := strconv.ParseInt(q.Get("end"), 10, 64)
		if err1 != nil || err2 != nil || end < start {
			http.Error(w, `{"error":"start and end must be epoch millis, start <= end"}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, cache.Range(r.Context(), tenantOf(r), start, end))
	})

	mux.HandleFunc("/cache", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		var err error
		if r.URL.Query().Get("all") == "true" {
			err = cache.ClearAll(r.Context())
		} else {
			err = cache.Clear(r.Context(), tenantOf(r))
		}
		if err != nil {
			log.Printf("api: cache clear failed: %v", err)
			http.Error(w, `{"error":"clear failed"}`, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
