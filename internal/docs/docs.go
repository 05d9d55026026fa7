// Package docs registers the service's swagger spec with swaggo/swag's
// runtime registry, in place of the generated docs.go a `swag init` run
// would normally produce from the @Summary/@Router annotations on
// api/resources/*.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "outagewatch",
        "description": "Residential power-outage monitoring: sensor heartbeats, section/building aggregation, and notification fan-out.",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {}
}`

// SwaggerInfo holds exported Swagger Info so the annotations in
// api/resources/*.go have somewhere to register to.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "outagewatch",
	Description:      "Residential power-outage monitoring service",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
