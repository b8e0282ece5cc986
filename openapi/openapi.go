package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

const schemaRefPrefix = "#/components/schemas/"

// Document is an OpenAPI 3 description assembled while routes are
// registered.
type Document struct {
	mu   sync.RWMutex
	spec *openapi3.T
}

func New(title, version string) *Document {
	return &Document{
		spec: &openapi3.T{
			OpenAPI: "3.0.3",
			Info: &openapi3.Info{
				Title:   title,
				Version: version,
			},
			Paths: openapi3.NewPaths(),
			Components: &openapi3.Components{
				Schemas:         make(openapi3.Schemas),
				SecuritySchemes: make(openapi3.SecuritySchemes),
			},
		},
	}
}

func (d *Document) Description(desc string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Info.Description = desc
	return d
}

func (d *Document) Server(url, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Servers = append(d.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return d
}

func (d *Document) Tag(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Tags = append(d.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return d
}

func (d *Document) BearerAuth(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  description,
		},
	}
	return d
}

func (d *Document) Spec() *openapi3.T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

func (d *Document) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.spec, "", "  ")
}

func (d *Document) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intermediate, err := d.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (d *Document) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.JSON()
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (d *Document) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.YAML()
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

func (d *Document) SwaggerUIHandler(specPath string) echo.HandlerFunc {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({url: "` + specPath + `", dom_id: '#swagger-ui'});
    </script>
</body>
</html>`
	return func(c echo.Context) error {
		return c.HTML(http.StatusOK, html)
	}
}

// Mount serves the document and, when ui is set, a Swagger UI at /docs.
func (d *Document) Mount(e *echo.Echo, ui bool) {
	e.GET("/openapi.json", d.JSONHandler())
	e.GET("/openapi.yaml", d.YAMLHandler())
	if ui {
		e.GET("/docs", d.SwaggerUIHandler("/openapi.json"))
	}
}

// Operation starts documenting method and path. Nothing is recorded until
// Build is called.
func (d *Document) Operation(method, path string) *Operation {
	return &Operation{
		doc:       d,
		method:    strings.ToUpper(method),
		path:      path,
		operation: &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
}

type Operation struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (o *Operation) Summary(summary string) *Operation {
	o.operation.Summary = summary
	return o
}

func (o *Operation) Tags(tags ...string) *Operation {
	o.operation.Tags = append(o.operation.Tags, tags...)
	return o
}

func (o *Operation) QueryParam(name, description string, required bool) *Operation {
	return o.param(name, "query", description, required)
}

func (o *Operation) HeaderParam(name, description string, required bool) *Operation {
	return o.param(name, "header", description, required)
}

func (o *Operation) param(name, in, description string, required bool) *Operation {
	o.operation.Parameters = append(o.operation.Parameters, &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          in,
			Description: description,
			Required:    required,
			Schema:      &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
		},
	})
	return o
}

func (o *Operation) Body(example any, description string, required bool) *Operation {
	o.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    required,
			Content:     openapi3.NewContentWithJSONSchemaRef(o.doc.schemaFor(example)),
		},
	}
	return o
}

func (o *Operation) Response(status int, example any, description string) *Operation {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(o.doc.schemaFor(example))
	}
	o.operation.AddResponse(status, resp)
	return o
}

func (o *Operation) Security(schemes ...string) *Operation {
	requirements := openapi3.NewSecurityRequirements()
	for _, scheme := range schemes {
		requirements.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	o.operation.Security = requirements
	return o
}

func (o *Operation) Build() {
	o.doc.mu.Lock()
	defer o.doc.mu.Unlock()

	item := o.doc.spec.Paths.Find(o.path)
	if item == nil {
		item = &openapi3.PathItem{}
		o.doc.spec.Paths.Set(o.path, item)
	}
	item.SetOperation(o.method, o.operation)
}

// schemaFor describes example by reflection. Named structs are registered
// once under components and referenced from then on.
func (d *Document) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()

	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return d.schemaForType(reflect.TypeOf(example))
}

func (d *Document) schemaForType(t reflect.Type) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Slice, reflect.Array:
		schema := openapi3.NewArraySchema()
		schema.Items = d.schemaForType(t.Elem())
		return schema.NewRef()
	case reflect.Map:
		schema := openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: d.schemaForType(t.Elem())}
		return schema.NewRef()
	case reflect.Struct:
		return d.structSchema(t)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

func (d *Document) structSchema(t reflect.Type) *openapi3.SchemaRef {
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return openapi3.NewDateTimeSchema().NewRef()
	}

	name := t.Name()
	if name != "" {
		if _, exists := d.spec.Components.Schemas[name]; exists {
			return openapi3.NewSchemaRef(schemaRefPrefix+name, nil)
		}
		// Reserve the name first so self-referencing types terminate.
		d.spec.Components.Schemas[name] = openapi3.NewObjectSchema().NewRef()
	}

	schema := openapi3.NewObjectSchema()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		fieldName := field.Name
		if parts[0] != "" {
			fieldName = parts[0]
		}

		schema.WithPropertyRef(fieldName, d.schemaForType(field.Type))

		optional := false
		for _, part := range parts[1:] {
			if part == "omitempty" {
				optional = true
			}
		}
		if !optional {
			schema.Required = append(schema.Required, fieldName)
		}
	}

	if name == "" {
		return schema.NewRef()
	}
	d.spec.Components.Schemas[name] = schema.NewRef()
	return openapi3.NewSchemaRef(schemaRefPrefix+name, nil)
}
