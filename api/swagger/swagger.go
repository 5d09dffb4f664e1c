package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "WaveChat Auth API",
        "description": "Session and identity service for the WaveChat platform",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, OAuth, refresh rotation and logout"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/api/v1/auth/signup": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Create account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SignUpRequest"}}
                ],
                "responses": {
                    "201": {"description": "Account created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session opened", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Authentication failed"}
                }
            }
        },
        "/api/v1/auth/oauth/{provider}": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate via OAuth provider",
                "parameters": [
                    {"name": "provider", "in": "path", "type": "string", "required": true, "enum": ["google", "facebook"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OAuthLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session opened", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Provider token rejected"},
                    "409": {"description": "Account exists under another provider"}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate session tokens",
                "parameters": [
                    {"name": "X-Client-ID", "in": "header", "type": "string", "required": true},
                    {"name": "X-Session-ID", "in": "header", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens rotated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Stale session or token reuse"}
                }
            }
        },
        "/api/v1/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "parameters": [
                    {"name": "Authorization", "in": "header", "type": "string", "required": true},
                    {"name": "X-Client-ID", "in": "header", "type": "string", "required": true},
                    {"name": "X-Session-ID", "in": "header", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Session revoked"},
                    "401": {"description": "Nothing to revoke"}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current identity",
                "parameters": [
                    {"name": "Authorization", "in": "header", "type": "string", "required": true},
                    {"name": "X-Client-ID", "in": "header", "type": "string", "required": true},
                    {"name": "X-Session-ID", "in": "header", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Verified identity", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Authentication failed"}
                }
            }
        }
    },
    "definitions": {
        "SignUpRequest": {
            "type": "object",
            "required": ["name", "email", "password"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "remember_me": {"type": "boolean"}
            }
        },
        "OAuthLoginRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {
                "token": {"type": "string"}
            }
        },
        "RefreshRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
