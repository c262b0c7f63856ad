package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// openAPIDocument is rendered once from the route table and served as JSON
// and YAML. Each operation carries its access requirement in x-access.
type openAPIDocument struct {
	json []byte
	yaml []byte
}

type openAPIOperation struct {
	Summary    string                     `json:"summary"`
	Tags       []string                   `json:"tags,omitempty"`
	Parameters []openAPIParameter         `json:"parameters,omitempty"`
	Security   []map[string][]string      `json:"security"`
	Responses  map[string]openAPIResponse `json:"responses"`
	Access     string                     `json:"x-access"`
}

type openAPIParameter struct {
	Name     string            `json:"name"`
	In       string            `json:"in"`
	Required bool              `json:"required"`
	Schema   map[string]string `json:"schema"`
}

type openAPIResponse struct {
	Description string `json:"description"`
}

func (d *openAPIDocument) build(routes []Route, version, cookieName string) error {
	if version == "" {
		version = "dev"
	}

	paths := map[string]map[string]openAPIOperation{}
	for _, rt := range routes {
		op := openAPIOperation{
			Summary:    rt.Summary,
			Parameters: pathParameters(rt.Pattern),
			Security:   []map[string][]string{},
			Responses:  responsesFor(rt.Access),
			Access:     rt.Access.String(),
		}
		if rt.Tag != "" {
			op.Tags = []string{rt.Tag}
		}
		if !rt.Access.IsPublic() {
			op.Security = []map[string][]string{{"bearerAuth": {}}, {"cookieAuth": {}}}
		}
		if paths[rt.Pattern] == nil {
			paths[rt.Pattern] = map[string]openAPIOperation{}
		}
		paths[rt.Pattern][strings.ToLower(rt.Method)] = op
	}

	tags := map[string]bool{}
	for _, rt := range routes {
		if rt.Tag != "" {
			tags[rt.Tag] = true
		}
	}
	tagList := make([]map[string]string, 0, len(tags))
	for _, name := range sortedKeys(tags) {
		tagList = append(tagList, map[string]string{"name": name})
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]string{
			"title":   "EventOps API",
			"version": version,
		},
		"tags":  tagList,
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
				"cookieAuth": map[string]string{"type": "apiKey", "in": "cookie", "name": cookieName},
			},
		},
	}

	var err error
	if d.json, err = json.Marshal(doc); err != nil {
		return err
	}
	d.yaml, err = yaml.JSONToYAML(d.json)
	return err
}

func pathParameters(pattern string) []openAPIParameter {
	var params []openAPIParameter
	for _, segment := range strings.Split(pattern, "/") {
		if len(segment) > 2 && strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			params = append(params, openAPIParameter{
				Name:     strings.Trim(segment, "{}"),
				In:       "path",
				Required: true,
				Schema:   map[string]string{"type": "string"},
			})
		}
	}
	return params
}

func responsesFor(access Access) map[string]openAPIResponse {
	responses := map[string]openAPIResponse{
		"200": {Description: "Success"},
		"429": {Description: "Too many requests"},
	}
	switch access.Level {
	case LevelPermission:
		responses["401"] = openAPIResponse{Description: "Unauthorized or invalid session"}
		responses["403"] = openAPIResponse{Description: "Missing permission " + access.Permission.String()}
	case LevelAuthenticated:
		responses["401"] = openAPIResponse{Description: "Unauthorized or invalid session"}
	}
	return responses
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *openAPIDocument) JSONHandler() http.Handler {
	return d.handler("application/json", func() []byte { return d.json })
}

func (d *openAPIDocument) YAMLHandler() http.Handler {
	return d.handler("application/yaml", func() []byte { return d.yaml })
}

func (d *openAPIDocument) handler(contentType string, body func() []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := body()
		if len(data) == 0 {
			http.Error(w, "openapi unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}
