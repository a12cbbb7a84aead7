package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Thuto API",
        "description": "School management core: relationship-aware authorization and the assessment lifecycle",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and password rotation"},
        {"name": "Accounts", "description": "Relationship-gated account profiles"},
        {"name": "Classrooms", "description": "Classroom views and rosters"},
        {"name": "Assessments", "description": "Assessment lifecycle: create, collect, release grades"},
        {"name": "Submissions", "description": "Submission recording and excusal"},
        {"name": "Transcripts", "description": "Grading and term report cards"},
        {"name": "Activities", "description": "Logged student activities"},
        {"name": "Timetables", "description": "Group timetables"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate account",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Rotated token pair"},
                    "401": {"description": "Expired or revoked refresh token"}
                }
            }
        },
        "/accounts/{id}": {
            "get": {
                "tags": ["Accounts"],
                "summary": "View an account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Account profile"},
                    "403": {"description": "Relationship rule denied the view"},
                    "404": {"description": "Account not found"}
                }
            },
            "put": {
                "tags": ["Accounts"],
                "summary": "Update an account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated profile"},
                    "403": {"description": "Only principals and admins can update accounts"}
                }
            }
        },
        "/accounts/{id}/can-message": {
            "get": {
                "tags": ["Accounts"],
                "summary": "Check messaging permission",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Decision with reason on denial"}
                }
            }
        },
        "/classrooms/{id}": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "View a classroom",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Classroom"},
                    "403": {"description": "Denied"}
                }
            }
        },
        "/classrooms/{id}/students": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "List classroom students",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Student IDs"}
                }
            }
        },
        "/assessments": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Create an assessment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Assessment created in DUE state"}
                }
            }
        },
        "/assessments/{id}/collect": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Collect an assessment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Assessment collected, missing submissions backfilled"},
                    "409": {"description": "Assessment is not awaiting collection"}
                }
            }
        },
        "/assessments/{id}/release-grades": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Release assessment grades",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Release scheduled"},
                    "409": {"description": "Grading incomplete or wrong state"}
                }
            }
        },
        "/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Record a submission",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Submission recorded with classified status"},
                    "409": {"description": "Duplicate submission"}
                }
            }
        },
        "/submissions/{id}/excuse": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Excuse a submission",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Submission excused"}
                }
            }
        },
        "/transcripts/grade": {
            "post": {
                "tags": ["Transcripts"],
                "summary": "Grade a submission",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Transcript with derived scores"},
                    "409": {"description": "Not collected, not submitted or out of range"}
                }
            }
        },
        "/students/{studentId}/terms/{termId}/report-card": {
            "get": {
                "tags": ["Transcripts"],
                "summary": "View a term report card",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Released transcript rows"}
                }
            }
        },
        "/activities/{id}": {
            "get": {
                "tags": ["Activities"],
                "summary": "View an activity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Activity"},
                    "403": {"description": "Denied"}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "View a group timetable",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Timetable"},
                    "403": {"description": "Denied"}
                }
            }
        }
    },
    "definitions": {
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
                "request_id": {"type": "string"}
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
