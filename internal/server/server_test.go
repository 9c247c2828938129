package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func TestCORSConfig(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		allowAll    bool
		credentials bool
	}{
		{"no origins", nil, true, false},
		{"wildcard", []string{"*"}, true, false},
		{"wildcard among origins", []string{"http://kiosk.local", "*"}, true, false},
		{"explicit origins", []string{"http://kiosk.local"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := corsConfig(tt.origins)
			if c.AllowAllOrigins != tt.allowAll || c.AllowCredentials != tt.credentials {
				t.Errorf("corsConfig(%v): all=%v credentials=%v", tt.origins, c.AllowAllOrigins, c.AllowCredentials)
			}
			if tt.allowAll && len(c.AllowOrigins) != 0 {
				t.Errorf("AllowOrigins must stay empty with all origins, got %v", c.AllowOrigins)
			}
			if err := c.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestCORSWildcardHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cors.New(corsConfig([]string{"*"})))
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("credentials must not be allowed for any origin, got %q", got)
	}
}
