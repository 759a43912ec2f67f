package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Administration API",
        "description": "Back-end for student, fee and payroll administration",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and sessions"},
        {"name": "Users", "description": "Application user management"},
        {"name": "Students", "description": "Student records and enrollment lifecycle"},
        {"name": "Guardians", "description": "Guardian records shared across siblings"},
        {"name": "Classes", "description": "Classes, sections and fee structures"},
        {"name": "Faculty", "description": "Faculty records and salary structures"},
        {"name": "Discounts", "description": "Per-student fee concessions"},
        {"name": "Vouchers", "description": "Fee voucher generation and lifecycle"},
        {"name": "Payments", "description": "Fee payment ledger"},
        {"name": "Salaries", "description": "Salary vouchers and payroll ledger"},
        {"name": "Expenses", "description": "Operating expense tracking"},
        {"name": "Reports", "description": "Financial reports and exports"},
        {"name": "Audit", "description": "Audit trail of mutating requests"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"},
                    "429": {"description": "Account locked"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "expelled", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/{id}/enroll": {
            "post": {
                "tags": ["Students"],
                "summary": "Enroll student into a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled"}
                }
            }
        },
        "/students/{id}/promote": {
            "post": {
                "tags": ["Students"],
                "summary": "Promote student to the next class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PromoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/vouchers": {
            "get": {
                "tags": ["Vouchers"],
                "summary": "List all vouchers of a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/fee-structures": {
            "get": {
                "tags": ["Classes"],
                "summary": "List fee structure versions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Append a fee structure version",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FeeStructureRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/vouchers/generate": {
            "post": {
                "tags": ["Vouchers"],
                "summary": "Generate a fee voucher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateVoucherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Voucher already exists for this month"},
                    "412": {"description": "Student has no open enrollment"}
                }
            }
        },
        "/vouchers/generate-bulk": {
            "post": {
                "tags": ["Vouchers"],
                "summary": "Generate fee vouchers for a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateBulkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/vouchers/{id}/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments of a voucher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment against a voucher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Amount exceeds remaining due"}
                }
            }
        },
        "/salaries/generate": {
            "post": {
                "tags": ["Salaries"],
                "summary": "Generate a salary voucher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateSalaryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Voucher already exists for this month"}
                }
            }
        },
        "/salaries/{id}/payments": {
            "post": {
                "tags": ["Salaries"],
                "summary": "Record a salary payment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Amount exceeds remaining net salary"}
                }
            }
        },
        "/reports/defaulters": {
            "get": {
                "tags": ["Reports"],
                "summary": "List students with outstanding dues",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/finance": {
            "get": {
                "tags": ["Reports"],
                "summary": "Month-by-month income and expense series",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/exports/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a previously exported report",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/audit-logs": {
            "get": {
                "tags": ["Audit"],
                "summary": "List audit log entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "roll_no": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "date_of_birth": {"type": "string"},
                "bay_form": {"type": "string"},
                "caste": {"type": "string"},
                "previous_school": {"type": "string"},
                "class_id": {"type": "string"},
                "section_id": {"type": "string"}
            },
            "required": ["name"]
        },
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "section_id": {"type": "string"},
                "start_date": {"type": "string"}
            },
            "required": ["class_id", "section_id"]
        },
        "PromoteRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "section_id": {"type": "string"},
                "reset_discount": {"type": "boolean"},
                "date": {"type": "string"}
            },
            "required": ["class_id", "section_id"]
        },
        "ClassRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "class_type": {"type": "string"}
            },
            "required": ["name", "class_type"]
        },
        "FeeStructureRequest": {
            "type": "object",
            "properties": {
                "effective_from": {"type": "string", "description": "YYYY-MM"},
                "admission_fee": {"type": "number"},
                "monthly_fee": {"type": "number"},
                "paper_fund": {"type": "number"}
            },
            "required": ["effective_from", "monthly_fee"]
        },
        "GenerateVoucherRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "month": {"type": "string", "description": "YYYY-MM"},
                "extra_items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/VoucherItemInput"}
                }
            },
            "required": ["student_id", "month"]
        },
        "GenerateBulkRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "section_id": {"type": "string"},
                "month": {"type": "string", "description": "YYYY-MM"}
            },
            "required": ["class_id", "month"]
        },
        "GenerateSalaryRequest": {
            "type": "object",
            "properties": {
                "faculty_id": {"type": "string"},
                "month": {"type": "string", "description": "YYYY-MM"},
                "adjustments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AdjustmentInput"}
                }
            },
            "required": ["faculty_id", "month"]
        },
        "AdjustmentInput": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["BONUS", "ADVANCE"]},
                "amount": {"type": "number"},
                "calc_type": {"type": "string", "enum": ["FLAT", "PERCENTAGE"]}
            },
            "required": ["type", "amount", "calc_type"]
        },
        "VoucherItemInput": {
            "type": "object",
            "properties": {
                "item_type": {"type": "string"},
                "amount": {"type": "number"}
            },
            "required": ["item_type", "amount"]
        },
        "RecordPaymentRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"},
                "payment_date": {"type": "string"}
            },
            "required": ["amount"]
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
