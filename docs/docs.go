// Package docs holds the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "token issued, or twoFactorRequiredResponse when requires2FA is set", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/auth/login/verify-2fa": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify second factor",
                "parameters": [
                    {"description": "Pending session and 6-digit code", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.verifyTwoFactorRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/user/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["user"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.meResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/user/password": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["user"],
                "summary": "Change password",
                "parameters": [
                    {"description": "Current and new password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.changePasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.successResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/user/piva-request": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["user"],
                "summary": "Submit P.IVA intake",
                "parameters": [
                    {"description": "Questionnaire", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.pivaIntakeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.userResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/security/2fa/enable": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["security"],
                "summary": "Start 2FA enrolment",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.enableTwoFactorResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/security/2fa/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["security"],
                "summary": "Confirm 2FA enrolment",
                "parameters": [
                    {"description": "6-digit code", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.confirmTwoFactorRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.successResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/security/2fa/disable": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["security"],
                "summary": "Disable 2FA",
                "parameters": [
                    {"description": "Current password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.disableTwoFactorRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.successResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/security/2fa/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["security"],
                "summary": "2FA status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.twoFactorStatusResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List users",
                "parameters": [
                    {"type": "string", "description": "business, admin or synetich_admin", "name": "role", "in": "query"},
                    {"type": "string", "description": "pending, approved or rejected", "name": "registrationStatus", "in": "query"},
                    {"type": "string", "description": "pending, approved or rejected", "name": "pivaStatus", "in": "query"},
                    {"type": "integer", "description": "max results (default 50, max 200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listUsersResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/admin/plans": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Subscription plans",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.plansResponse"}}
                }
            }
        },
        "/admin/users/{id}/registration": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Decide registration",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "id", "in": "path", "required": true},
                    {"description": "Decision", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registrationDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.userResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/admin/users/{id}/piva/approve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Approve P.IVA request",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "id", "in": "path", "required": true},
                    {"description": "Plan", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.approvePivaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.userResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/admin/users/{id}/piva/reject": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Reject P.IVA request",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.userResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/webhooks/payments": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Payment provider webhook",
                "parameters": [
                    {"type": "string", "description": "base64 HMAC-SHA256 of the body", "name": "X-Signature", "in": "header", "required": true},
                    {"description": "Payment event", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.paymentEventRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.webhookResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.readinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.readinessResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "remainingTime": {"type": "integer"}}
        },
        "handler.successResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}}
        },
        "handler.loginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.registerRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "name": {"type": "string"}, "phone": {"type": "string"}}
        },
        "handler.userSummary": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "email": {"type": "string"}, "name": {"type": "string"}, "role": {"type": "string"}}
        },
        "handler.sessionResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "token": {"type": "string"},
                "expiresAt": {"type": "string"},
                "user": {"$ref": "#/definitions/handler.userSummary"}
            }
        },
        "handler.twoFactorRequiredResponse": {
            "type": "object",
            "properties": {
                "requires2FA": {"type": "boolean"},
                "userId": {"type": "string", "description": "pending-session id to send back to /auth/login/verify-2fa"},
                "pendingSessionId": {"type": "string"},
                "expiresAt": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handler.verifyTwoFactorRequest": {
            "type": "object",
            "required": ["userId", "token"],
            "properties": {"userId": {"type": "string"}, "pendingSessionId": {"type": "string"}, "token": {"type": "string"}}
        },
        "handler.meResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "user": {"$ref": "#/definitions/domain.User"}, "view": {"type": "string"}}
        },
        "handler.userResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "user": {"$ref": "#/definitions/domain.User"}, "view": {"type": "string"}}
        },
        "handler.changePasswordRequest": {
            "type": "object",
            "properties": {"currentPassword": {"type": "string"}, "newPassword": {"type": "string"}}
        },
        "handler.pivaIntakeRequest": {
            "type": "object",
            "required": ["firstName", "lastName", "dateOfBirth", "placeOfBirth", "fiscalCode", "residenceAddress", "residenceCity", "residenceCAP", "residenceProvince", "businessActivity"],
            "properties": {
                "hasExistingPiva": {"type": "boolean"},
                "existingPivaNumber": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "dateOfBirth": {"type": "string"},
                "placeOfBirth": {"type": "string"},
                "fiscalCode": {"type": "string"},
                "residenceAddress": {"type": "string"},
                "residenceCity": {"type": "string"},
                "residenceCAP": {"type": "string"},
                "residenceProvince": {"type": "string"},
                "businessActivity": {"type": "string"},
                "codiceAteco": {"type": "string"},
                "businessName": {"type": "string"},
                "expectedRevenue": {"type": "number"},
                "hasOtherIncome": {"type": "boolean"},
                "otherIncomeDetails": {"type": "string"},
                "hasIdentityDocument": {"type": "boolean"},
                "hasFiscalCode": {"type": "boolean"},
                "additionalNotes": {"type": "string"}
            }
        },
        "handler.listUsersResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "count": {"type": "integer"}, "users": {"type": "array", "items": {"$ref": "#/definitions/domain.User"}}}
        },
        "handler.registrationDecisionRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["approved", "rejected"]}}
        },
        "handler.approvePivaRequest": {
            "type": "object",
            "required": ["planId"],
            "properties": {"planId": {"type": "string"}}
        },
        "handler.plansResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "plans": {"type": "array", "items": {"$ref": "#/definitions/domain.Plan"}}}
        },
        "handler.enableTwoFactorResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "secret": {"type": "string"}, "otpauthUrl": {"type": "string"}}
        },
        "handler.confirmTwoFactorRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {"token": {"type": "string"}}
        },
        "handler.disableTwoFactorRequest": {
            "type": "object",
            "properties": {"password": {"type": "string"}}
        },
        "handler.twoFactorStatusResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "enabled": {"type": "boolean"}}
        },
        "handler.paymentEventData": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "customerId": {"type": "string"},
                "subscriptionId": {"type": "string"},
                "status": {"type": "string"},
                "planId": {"type": "string"},
                "currentPeriodEnd": {"type": "integer"}
            }
        },
        "handler.paymentEventRequest": {
            "type": "object",
            "required": ["id", "type"],
            "properties": {"id": {"type": "string"}, "type": {"type": "string"}, "data": {"$ref": "#/definitions/handler.paymentEventData"}}
        },
        "handler.webhookResponse": {
            "type": "object",
            "properties": {"received": {"type": "boolean"}, "outcome": {"type": "string"}}
        },
        "handler.dependencyStatus": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "error": {"type": "string"}}
        },
        "handler.readinessResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "dependencies": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.dependencyStatus"}}
            }
        },
        "domain.Plan": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "price": {"type": "number"}, "interval": {"type": "string"}}
        },
        "domain.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "role": {"type": "string", "enum": ["business", "admin", "synetich_admin"]},
                "registrationApprovalStatus": {"type": "string", "enum": ["pending", "approved", "rejected"]},
                "pivaFormSubmitted": {"type": "boolean"},
                "pivaApprovalStatus": {"type": "string", "enum": ["pending", "approved", "rejected"]},
                "subscriptionStatus": {"type": "string"},
                "selectedPlan": {"$ref": "#/definitions/domain.Plan"},
                "subscriptionCurrentPeriodEnd": {"type": "string"},
                "twoFactorEnabled": {"type": "boolean"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the session token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TaxFlow API",
	Description:      "Accounts, sessions and the P.IVA approval flow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
