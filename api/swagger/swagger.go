package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Rackbook API",
        "description": "Rack booking reconciliation: conflicts, capacity, recurring series and cutoff",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Bookings", "description": "Booking series and their sessions"},
        {"name": "Capacity", "description": "Capacity schedules per side"},
        {"name": "Export", "description": "Printable rack sheets"}
    ],
    "paths": {
        "/cutoff": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get the booking cutoff for a date",
                "parameters": [{"name": "date", "in": "query", "type": "string", "format": "date", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Create a booking series",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Dry run plan", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Blocked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/check/conflicts": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Check a candidate session for rack conflicts",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CandidateRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/bookings/check/capacity": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Check a candidate session against capacity schedules",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CandidateRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/bookings/process": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Mark pending bookings as processed (admin)",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProcessBookingsRequest"}}],
                "responses": {
                    "200": {"description": "Per-booking results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/extend": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Extend a booking series by whole weeks",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExtendBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Cutoff passed or locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Blocked, see meta.violations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/instances": {
            "patch": {
                "tags": ["Bookings"],
                "summary": "Edit selected sessions of a booking",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditInstancesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Blocked, see meta.violations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Cancel one, later or all sessions of a booking",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CancelRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sides/{id}/schedules": {
            "get": {
                "tags": ["Capacity"],
                "summary": "List capacity schedules of a side",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Capacity"],
                "summary": "Create or replace capacity schedules (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertSchedulesRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/schedules/{id}": {
            "delete": {
                "tags": ["Capacity"],
                "summary": "Delete a capacity schedule (admin)",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"204": {"description": "Deleted"}, "404": {"description": "Not found"}}
            }
        },
        "/sides/{id}/sheet": {
            "get": {
                "tags": ["Export"],
                "summary": "Download the weekly rack sheet of a side",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "week", "in": "query", "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "CandidateRequest": {
            "type": "object",
            "required": ["sideId", "start", "end", "racks"],
            "properties": {
                "instanceId": {"type": "string"},
                "bookingId": {"type": "string"},
                "excludeBookingId": {"type": "string"},
                "sideId": {"type": "string"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "racks": {"type": "array", "items": {"type": "integer"}},
                "capacity": {"type": "integer"}
            }
        },
        "CreateBookingRequest": {
            "type": "object",
            "required": ["title", "sideId", "start", "end", "racks"],
            "properties": {
                "title": {"type": "string"},
                "sideId": {"type": "string"},
                "color": {"type": "string"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "racks": {"type": "array", "items": {"type": "integer"}},
                "areas": {"type": "array", "items": {"type": "string"}},
                "capacity": {"type": "integer"},
                "weeks": {"type": "integer"},
                "weekOffset": {"type": "integer"},
                "dryRun": {"type": "boolean"}
            }
        },
        "ExtendBookingRequest": {
            "type": "object",
            "required": ["weeks"],
            "properties": {
                "weeks": {"type": "integer"},
                "dryRun": {"type": "boolean"}
            }
        },
        "EditInstancesRequest": {
            "type": "object",
            "properties": {
                "instanceIds": {"type": "array", "items": {"type": "string"}},
                "applyToAll": {"type": "boolean"},
                "startTime": {"type": "string", "example": "09:00"},
                "endTime": {"type": "string", "example": "11:00"},
                "racks": {"type": "array", "items": {"type": "integer"}},
                "areas": {"type": "array", "items": {"type": "string"}},
                "capacity": {"type": "integer"},
                "dryRun": {"type": "boolean"}
            }
        },
        "CancelRequest": {
            "type": "object",
            "required": ["mode"],
            "properties": {
                "instanceId": {"type": "string"},
                "mode": {"type": "string", "enum": ["single", "future", "all"]},
                "dryRun": {"type": "boolean"}
            }
        },
        "ProcessBookingsRequest": {
            "type": "object",
            "required": ["bookingIds"],
            "properties": {
                "bookingIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CapacityScheduleRequest": {
            "type": "object",
            "required": ["startTime", "endTime", "periodType"],
            "properties": {
                "id": {"type": "string"},
                "dayOfWeek": {"type": "integer"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "startTime": {"type": "string", "example": "06:00"},
                "endTime": {"type": "string", "example": "12:00"},
                "periodType": {"type": "string", "enum": ["Performance", "General User", "Closed"]},
                "capacity": {"type": "integer"},
                "platforms": {"type": "array", "items": {"type": "integer"}},
                "excludedDates": {"type": "array", "items": {"type": "string", "format": "date"}}
            }
        },
        "UpsertSchedulesRequest": {
            "type": "object",
            "required": ["schedules"],
            "properties": {
                "schedules": {"type": "array", "items": {"$ref": "#/definitions/CapacityScheduleRequest"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "retryable": {"type": "boolean"}
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
