package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func TestTranslator(t *testing.T) {
	tr, err := NewTranslator(I18nConfig{DefaultLanguage: "en"})
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	tests := []struct {
		lang, id string
		data     map[string]interface{}
		want     string
	}{
		{"en", "error.no_face", nil, "No face detected in the image"},
		{"de", "error.no_face", nil, "Kein Gesicht im Bild erkannt"},
		{"fr", "error.no_face", nil, "No face detected in the image"},
		{"en", "msg.marked", map[string]interface{}{"Count": 3}, "3 attendance records written"},
		{"en", "does.not.exist", nil, "does.not.exist"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			if got := tr.T(tt.lang, tt.id, tt.data); got != tt.want {
				t.Errorf("T() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNegotiate(t *testing.T) {
	tr, err := NewTranslator(I18nConfig{DefaultLanguage: "en"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		header, want string
	}{
		{"", "en"},
		{"de-DE,de;q=0.9", "de"},
		{"fr-FR", "en"},
		{"fr;q=0.9, de;q=0.8", "de"},
	}
	for _, tt := range tests {
		if got := tr.Negotiate(tt.header); got != tt.want {
			t.Errorf("Negotiate(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

func TestMiddlewareStoresLanguage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr, err := NewTranslator(I18nConfig{DefaultLanguage: "en"})
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.Use(I18n(tr))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, T(c, "error.no_face", nil))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?lang=de", nil))
	if w.Body.String() != "Kein Gesicht im Bild erkannt" {
		t.Fatalf("body = %q", w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "Kein Gesicht im Bild erkannt" {
		t.Errorf("language not kept in session: %q", w.Body.String())
	}
}
