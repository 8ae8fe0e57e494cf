package systree

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidArgs tree requires discovery source
var ErrInvalidArgs = errors.New("systree: invalid arguments")

// Handler serves values under URL path equal to value topic.
// Root path lists every known topic
func (t *impl) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		topic := strings.TrimPrefix(r.URL.Path, "/")

		if topic == "" {
			list := make([]string, 0, len(t.values))
			for _, v := range t.values {
				list = append(list, v.Topic())
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(list)

			return
		}

		val, ok := t.Get(topic)
		if !ok {
			http.NotFound(w, r)
			return
		}

		if json.Valid(val) {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}

		_, _ = w.Write(val)
	})
}
