package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"flowsmith/backend/internal/auth"
)

func TestSpecHandler_SubstitutesIssuer(t *testing.T) {
	rec := httptest.NewRecorder()
	SpecHandler("https://example.okta.com/oauth2/default/")(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "https://example.okta.com/oauth2/default/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{oktaIssuer}")
	assert.Contains(t, rec.Body.String(), "/langflow/import")
	for _, scope := range auth.AllScopes {
		assert.Contains(t, rec.Body.String(), scope)
	}
}

func TestSwaggerHandler_RedirectFollowsProxyScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	req.Host = "flows.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	SwaggerHandler("swagger-client")(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `oauth2RedirectUrl: "https://flows.example.com/docs/oauth2-redirect.html"`)
	assert.Contains(t, body, `clientId: "swagger-client"`)
	assert.Contains(t, body, `scopes: "openid profile email flows:read flows:write"`)
	assert.NotContains(t, body, "${")
}
