// Package docs registers the OpenAPI description of the license API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/licenses/verify": {
            "post": {
                "summary": "Verify a purchase code or license key",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/VerifyLicenseRequest"}}],
                "responses": {
                    "200": {"description": "Verdict; valid=false carries the failure code", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "INVALID_FORMAT, INVALID_DOMAIN or VALIDATION_FAILED", "schema": {"$ref": "#/definitions/Envelope"}},
                    "429": {"description": "RATE_LIMITED", "schema": {"$ref": "#/definitions/Envelope"}},
                    "503": {"description": "REMOTE_UNAVAILABLE", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/licenses/purchase-codes/verify": {
            "post": {
                "summary": "Verify a purchase code locally, then against the marketplace",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/VerifyPurchaseCodeRequest"}}],
                "responses": {
                    "200": {"description": "Purchase is valid", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "INVALID_PURCHASE_CODE", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/licenses/{key}/domains": {
            "post": {
                "summary": "Bind a domain to a license",
                "parameters": [
                    {"in": "path", "name": "key", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ActivateDomainRequest"}}
                ],
                "responses": {
                    "200": {"description": "Binding created or refreshed", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "DOMAIN_LIMIT_REACHED", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/licenses/{key}/domains/{domain}": {
            "delete": {
                "summary": "Switch a domain binding off",
                "parameters": [
                    {"in": "path", "name": "key", "type": "string", "required": true},
                    {"in": "path", "name": "domain", "type": "string", "required": true}
                ],
                "responses": {"200": {"description": "Deactivation result", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/licenses/{key}": {
            "get": {
                "summary": "License details with domain bindings",
                "security": [{"AdminToken": []}],
                "parameters": [{"in": "path", "name": "key", "type": "string", "required": true}],
                "responses": {"200": {"description": "License", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/licenses/{key}/status": {
            "post": {
                "summary": "Change the license status",
                "security": [{"AdminToken": []}],
                "parameters": [{"in": "path", "name": "key", "type": "string", "required": true}],
                "responses": {"200": {"description": "Updated license", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/analytics/verifications": {
            "get": {
                "summary": "Verification statistics over the last N days",
                "security": [{"AdminToken": []}],
                "parameters": [{"in": "query", "name": "days", "type": "integer"}],
                "responses": {"200": {"description": "Statistics", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/analytics/suspicious": {
            "get": {
                "summary": "Anomalies found in the verification log",
                "security": [{"AdminToken": []}],
                "responses": {"200": {"description": "Findings", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        }
    },
    "securityDefinitions": {
        "AdminToken": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "definitions": {
        "Envelope": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "data": {"type": "object"},
                "message": {"type": "string"},
                "code": {"type": "string"},
                "trace_id": {"type": "string"}
            }
        },
        "VerifyLicenseRequest": {
            "type": "object",
            "required": ["purchase_code"],
            "properties": {
                "purchase_code": {"type": "string"},
                "domain": {"type": "string"},
                "activate": {"type": "boolean"},
                "context": {"type": "object"},
                "source": {"type": "string", "enum": ["api", "install", "admin"]}
            }
        },
        "VerifyPurchaseCodeRequest": {
            "type": "object",
            "required": ["purchase_code"],
            "properties": {
                "purchase_code": {"type": "string"},
                "product_id": {"type": "integer"},
                "user_id": {"type": "integer"}
            }
        },
        "ActivateDomainRequest": {
            "type": "object",
            "required": ["domain"],
            "properties": {
                "domain": {"type": "string"},
                "context": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds the exported metadata of the license API.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Title:            "License Verification API",
	Description:      "Purchase code verification, domain activation and verification analytics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
