package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Study Replan API",
        "description": "Reschedules overdue study sessions of a plan onto future dates before the exam.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Replan", "description": "Overdue session rescheduling"}
    ],
    "paths": {
        "/plans/{planId}/overdue-check": {
            "get": {
                "tags": ["Replan"],
                "summary": "Count overdue sessions of a plan",
                "parameters": [
                    {"name": "planId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/OverdueCheckEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Plan not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{planId}/replan-preview": {
            "get": {
                "tags": ["Replan"],
                "summary": "Preview a replanning run without saving it",
                "parameters": [
                    {"name": "planId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Plan not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{planId}/replan": {
            "post": {
                "tags": ["Replan"],
                "summary": "Reschedule overdue sessions of a plan",
                "description": "Moves every overdue pending session it can onto a future date before the exam. Sessions that do not fit keep their date.",
                "parameters": [
                    {"name": "planId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReplanEnvelope"}},
                    "404": {"description": "Plan not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A run is already in progress for this plan", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Run timed out and was rolled back", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{planId}/replan-runs": {
            "get": {
                "tags": ["Replan"],
                "summary": "List replanning runs of a plan",
                "parameters": [
                    {"name": "planId", "in": "path", "required": true, "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/{planId}/replan-runs/{runId}/export": {
            "get": {
                "tags": ["Replan"],
                "summary": "Download a replanning run",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/calendar"],
                "parameters": [
                    {"name": "planId", "in": "path", "required": true, "type": "integer"},
                    {"name": "runId", "in": "path", "required": true, "type": "string", "format": "uuid"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx", "ics"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SessionPlacement": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "integer"},
                "subject": {"type": "string"},
                "oldDate": {"type": "string", "format": "date"},
                "newDate": {"type": "string", "format": "date"},
                "strategy": {"type": "string", "enum": ["preferred", "fallback"]}
            }
        },
        "SessionFailure": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "integer"},
                "subject": {"type": "string"},
                "reason": {"type": "string", "enum": ["no_capacity", "exam_passed", "not_pending"]}
            }
        },
        "ReplanDetails": {
            "type": "object",
            "properties": {
                "rescheduled": {"type": "integer"},
                "failed": {"type": "integer"},
                "total": {"type": "integer"},
                "strategy": {"type": "string"},
                "distribution": {"type": "array", "items": {"$ref": "#/definitions/SessionPlacement"}},
                "failures": {"type": "array", "items": {"$ref": "#/definitions/SessionFailure"}}
            }
        },
        "ReplanResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "details": {"$ref": "#/definitions/ReplanDetails"}
            }
        },
        "OverdueCheck": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "needsReplanning": {"type": "boolean"},
                "sessions": {"type": "array", "items": {"type": "object"}}
            }
        },
        "ReplanEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ReplanResponse"},
                "meta": {"type": "object"}
            }
        },
        "OverdueCheckEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/OverdueCheck"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
