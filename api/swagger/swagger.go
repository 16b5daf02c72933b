package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Admissions Intake API",
        "description": "Waitlist ranking and position management for admissions intake",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Waitlist", "description": "Queue views and position management"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/waitlist": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "Staff waitlist queue",
                "parameters": [
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Waitlist"],
                "summary": "Add a lead to a waitlist partition",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnqueueRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Lead already queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/waitlist/parent-view": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "Parent-facing waitlist view",
                "parameters": [
                    {"name": "email", "in": "query", "type": "string", "description": "Parent email override, staff only"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/waitlist/export": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "Download the staff queue as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered document"}
                }
            }
        },
        "/api/v1/waitlist/{id}": {
            "patch": {
                "tags": ["Waitlist"],
                "summary": "Partially update an entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WaitlistPatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/waitlist/{id}/position": {
            "put": {
                "tags": ["Waitlist"],
                "summary": "Move an entry to a new position within its partition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReorderRequest"}}
                ],
                "responses": {
                    "204": {"description": "Moved"},
                    "400": {"description": "Position outside the active range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent update, retry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/waitlist/{id}/status": {
            "put": {
                "tags": ["Waitlist"],
                "summary": "Transition an entry's status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnqueueRequest": {
            "type": "object",
            "properties": {
                "lead_id": {"type": "string"},
                "school_id": {"type": "string"},
                "program": {"type": "string"}
            },
            "required": ["lead_id", "school_id", "program"]
        },
        "ReorderRequest": {
            "type": "object",
            "properties": {
                "position": {"type": "integer", "minimum": 1}
            },
            "required": ["position"]
        },
        "StatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["WAITLISTED", "CONTACTED", "INTERESTED", "TOURED", "DECLINED", "ENROLLED"]}
            },
            "required": ["status"]
        },
        "WaitlistPatchRequest": {
            "type": "object",
            "properties": {
                "notes": {"type": "string", "x-nullable": true},
                "priority_score": {"type": "integer", "minimum": 0, "maximum": 100},
                "ui_score": {"type": "integer", "minimum": 1, "maximum": 10},
                "offer_date": {"type": "string", "format": "date-time", "x-nullable": true}
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
                "pagination": {"type": "object"},
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
