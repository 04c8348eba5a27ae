// Package openapi generates an OpenAPI 3.1 document from registered route
// groups so the served description always matches the mux.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/JaimeStill/agent-chat/pkg/routes"
)

var pathParam = regexp.MustCompile(`\{([^}]+)\}`)

// Spec represents a complete OpenAPI 3.1 specification document.
type Spec struct {
	OpenAPI string               `json:"openapi"`
	Info    *Info                `json:"info"`
	Servers []*Server            `json:"servers,omitempty"`
	Tags    []*Tag               `json:"tags,omitempty"`
	Paths   map[string]*PathItem `json:"paths"`
}

type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Server struct {
	URL string `json:"url"`
}

type Tag struct {
	Name string `json:"name"`
}

// PathItem describes operations available on a single path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

type Operation struct {
	OperationID string               `json:"operationId"`
	Tags        []string             `json:"tags,omitempty"`
	Parameters  []*Parameter         `json:"parameters,omitempty"`
	Responses   map[string]*Response `json:"responses"`
}

type Parameter struct {
	Name     string  `json:"name"`
	In       string  `json:"in"`
	Required bool    `json:"required"`
	Schema   *Schema `json:"schema"`
}

type Schema struct {
	Type string `json:"type"`
}

type Response struct {
	Description string `json:"description"`
}

// Build describes every route in groups. Paths are relative to basePath,
// which becomes the document's server URL.
func Build(cfg *Config, version, basePath string, groups ...routes.Group) *Spec {
	spec := &Spec{
		OpenAPI: "3.1.0",
		Info: &Info{
			Title:       cfg.Title,
			Version:     version,
			Description: cfg.Description,
		},
		Paths: make(map[string]*PathItem),
	}
	if basePath != "" {
		spec.Servers = []*Server{{URL: basePath}}
	}

	for _, g := range groups {
		spec.addGroup("", "", g)
	}
	return spec
}

func (s *Spec) addGroup(parent, tag string, g routes.Group) {
	prefix := parent + g.Prefix
	if g.Description != "" {
		tag = g.Description
		s.Tags = append(s.Tags, &Tag{Name: tag})
	}

	for _, r := range g.Routes {
		s.addOperation(prefix+r.Pattern, r.Method, tag)
	}
	for _, child := range g.Children {
		s.addGroup(prefix, tag, child)
	}
}

func (s *Spec) addOperation(path, method, tag string) {
	item, ok := s.Paths[path]
	if !ok {
		item = &PathItem{}
		s.Paths[path] = item
	}

	op := &Operation{
		OperationID: operationID(method, path),
		Responses:   map[string]*Response{"default": {Description: "See the API reference for status codes"}},
	}
	if tag != "" {
		op.Tags = []string{tag}
	}
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		op.Parameters = append(op.Parameters, &Parameter{
			Name:     m[1],
			In:       "path",
			Required: true,
			Schema:   &Schema{Type: "string"},
		})
	}

	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodDelete:
		item.Delete = op
	}
}

// operationID turns "POST /conversations/{id}/messages" into
// "post_conversations_id_messages".
func operationID(method, path string) string {
	clean := strings.NewReplacer("{", "", "}", "", "/", "_", "-", "_").Replace(path)
	return strings.ToLower(method) + strings.TrimRight(clean, "_")
}

// Handler serves spec as JSON. The document is encoded once.
func Handler(spec *Spec) (http.HandlerFunc, error) {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal openapi spec: %w", err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}, nil
}
