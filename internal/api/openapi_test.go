package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestOpenAPIDocumentFromRouteTable(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/api/v1/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc struct {
		Info  map[string]string                    `json:"info"`
		Paths map[string]map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "0.1.0-test", doc.Info["version"])

	for _, route := range s.router.Routes() {
		ops, ok := doc.Paths[route.Pattern]
		require.True(t, ok, route.Pattern)
		_, ok = ops[lowerMethod(route.Method)]
		assert.True(t, ok, route.Method+" "+route.Pattern)
	}

	assert.Equal(t, "permission:history:read", doc.Paths["/api/v1/history"]["get"]["x-access"])
	assert.Equal(t, "public-read", doc.Paths["/api/v1/events"]["get"]["x-access"])

	params := doc.Paths["/api/v1/staff/{id}"]["get"]["parameters"].([]any)
	require.Len(t, params, 1)
	assert.Equal(t, "id", params[0].(map[string]any)["name"])
}

func TestOpenAPIYAMLMatchesJSON(t *testing.T) {
	s := newTestServer(t, testConfig())

	jsonRec := s.do(t, http.MethodGet, "/api/v1/openapi.json", "", nil)
	yamlRec := s.do(t, http.MethodGet, "/api/v1/openapi.yaml", "", nil)
	require.Equal(t, http.StatusOK, yamlRec.Code)
	assert.Equal(t, "application/yaml", yamlRec.Header().Get("Content-Type"))

	converted, err := yaml.YAMLToJSON(yamlRec.Body.Bytes())
	require.NoError(t, err)
	assert.JSONEq(t, jsonRec.Body.String(), string(converted))
}

func TestOpenAPIRejectsWrites(t *testing.T) {
	s := newTestServer(t, testConfig())

	// not allow-listed for POST, so the gate answers before the mux
	rec := s.do(t, http.MethodPost, "/api/v1/openapi.json", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, token := s.adminToken(t)
	rec = s.do(t, http.MethodPost, "/api/v1/openapi.json", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func lowerMethod(method string) string {
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPost:
		return "post"
	case http.MethodPut:
		return "put"
	case http.MethodPatch:
		return "patch"
	case http.MethodDelete:
		return "delete"
	}
	return method
}
