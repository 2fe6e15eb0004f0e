package middleware

import (
	"net/http"
	"testing"
	"time"
)

func TestCORS(t *testing.T) {
	const admin = "https://admin.example.com"
	preflight := http.Header{
		"Origin":                        {admin},
		"Access-Control-Request-Method": {http.MethodPost},
	}

	tests := []struct {
		name    string
		opts    CORSOptions
		method  string
		header  http.Header
		code    int
		want    map[string]string
		notWant []string
	}{
		{
			name:    "same origin untouched",
			opts:    CORSOptions{Origins: []string{"*"}},
			method:  http.MethodGet,
			code:    http.StatusOK,
			notWant: []string{"Access-Control-Allow-Origin", "Vary"},
		},
		{
			name:   "wildcard",
			opts:   CORSOptions{Origins: []string{"*"}},
			method: http.MethodGet,
			header: http.Header{"Origin": {admin}},
			code:   http.StatusOK,
			want: map[string]string{
				"Access-Control-Allow-Origin":   "*",
				"Access-Control-Expose-Headers": "X-Request-ID, HX-Trigger, HX-Redirect, HX-Reswap",
				"Vary":                          "Origin",
			},
		},
		{
			name:   "wildcard with credentials echoes origin",
			opts:   CORSOptions{Origins: []string{"*"}, Credentials: true},
			method: http.MethodGet,
			header: http.Header{"Origin": {admin}},
			code:   http.StatusOK,
			want: map[string]string{
				"Access-Control-Allow-Origin":      admin,
				"Access-Control-Allow-Credentials": "true",
			},
		},
		{
			name:    "origin not listed",
			opts:    CORSOptions{Origins: []string{"https://other.example.com"}},
			method:  http.MethodGet,
			header:  http.Header{"Origin": {admin}},
			code:    http.StatusOK,
			want:    map[string]string{"Vary": "Origin"},
			notWant: []string{"Access-Control-Allow-Origin"},
		},
		{
			name:    "release default denies",
			opts:    CORSOptions{},
			method:  http.MethodOptions,
			header:  preflight,
			code:    http.StatusNotFound,
			notWant: []string{"Access-Control-Allow-Origin", "Access-Control-Allow-Methods"},
		},
		{
			name:   "preflight defaults",
			opts:   CORSOptions{Origins: []string{admin}, MaxAge: 12 * time.Hour},
			method: http.MethodOptions,
			header: preflight,
			code:   http.StatusNoContent,
			want: map[string]string{
				"Access-Control-Allow-Origin":  admin,
				"Access-Control-Allow-Methods": "GET, HEAD, POST, OPTIONS",
				"Access-Control-Allow-Headers": "Accept, Content-Type, X-Request-ID, X-CSRF-Token, HX-Request, HX-Current-URL, HX-Target, HX-Trigger",
				"Access-Control-Max-Age":       "43200",
			},
		},
		{
			name:    "preflight configured",
			opts:    CORSOptions{Origins: []string{admin}, Methods: []string{"GET"}, Headers: []string{"Content-Type"}},
			method:  http.MethodOptions,
			header:  preflight,
			code:    http.StatusNoContent,
			want:    map[string]string{"Access-Control-Allow-Methods": "GET", "Access-Control-Allow-Headers": "Content-Type"},
			notWant: []string{"Access-Control-Max-Age"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := siteRouter(CORS(tt.opts))
			path := "/api/v1/builds/3"
			if tt.method == http.MethodOptions {
				path = "/api/v1/builds"
			}

			w := serve(r, tt.method, path, tt.header)

			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			for k, v := range tt.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
			for _, k := range tt.notWant {
				if got := w.Header().Get(k); got != "" {
					t.Errorf("%s = %q, want unset", k, got)
				}
			}
		})
	}
}
