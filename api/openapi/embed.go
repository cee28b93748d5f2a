// Package openapi embeds the HTTP API description served by the server.
package openapi

import _ "embed"

// Spec is the OpenAPI document in YAML
//
//go:embed openapi.yaml
var Spec []byte
