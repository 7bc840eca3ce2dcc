// Package docs registers the QueryDesk swagger document.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "auth"},
        {"name": "queries"},
        {"name": "notes"},
        {"name": "users"},
        {"name": "ai"},
        {"name": "webhooks"}
    ],
    "paths": {
        "/api/auth/register": {"post": {"tags": ["auth"], "summary": "Register a customer account"}},
        "/api/auth/login": {"post": {"tags": ["auth"], "summary": "Exchange credentials for a token"}},
        "/api/auth/me": {"get": {"tags": ["auth"], "security": [{"BearerAuth": []}], "summary": "Current user"}},
        "/api/queries": {
            "get": {"tags": ["queries"], "security": [{"BearerAuth": []}], "summary": "List queries"},
            "post": {"tags": ["queries"], "security": [{"BearerAuth": []}], "summary": "Submit a manual query"}
        },
        "/api/queries/{id}": {
            "get": {"tags": ["queries"], "security": [{"BearerAuth": []}], "summary": "Get a query"},
            "patch": {"tags": ["queries"], "security": [{"BearerAuth": []}], "summary": "Update a query"},
            "delete": {"tags": ["queries"], "security": [{"BearerAuth": []}], "summary": "Delete a query"}
        },
        "/api/notes": {
            "get": {"tags": ["notes"], "security": [{"BearerAuth": []}], "summary": "List notes"},
            "post": {"tags": ["notes"], "security": [{"BearerAuth": []}], "summary": "Add a note to a query"}
        },
        "/api/users": {"get": {"tags": ["users"], "security": [{"BearerAuth": []}], "summary": "List users"}},
        "/api/users/{id}": {"patch": {"tags": ["users"], "security": [{"BearerAuth": []}], "summary": "Update an agent profile"}},
        "/api/ai/generate": {"post": {"tags": ["ai"], "security": [{"BearerAuth": []}], "summary": "Draft an acknowledgement reply"}},
        "/webhook/whatsapp": {
            "get": {"tags": ["webhooks"], "summary": "Webhook verification handshake"},
            "post": {"tags": ["webhooks"], "summary": "Receive WhatsApp messages"}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "QueryDesk API",
	Description:      "Multi-channel customer query intake, triage and agent assignment.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
