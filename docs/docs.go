// Package docs holds the Swagger spec served under /swagger/. Regenerate it with
// `swag init -g cmd/main.go` after changing handler annotations.
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
        "/auth/token": {
            "post": {
                "description": "Issues a signed bearer token for the given username.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Authentication"
                ],
                "summary": "Generate a JWT bearer token",
                "parameters": [
                    {
                        "description": "Token request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.TokenRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Token successfully generated",
                        "schema": {
                            "$ref": "#/definitions/dto.TokenResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid request parameters",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/customers": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "List customers",
                "parameters": [
                    {
                        "type": "boolean",
                        "description": "Only active customers (default true)",
                        "name": "active",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "List of customers",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/dto.CustomerResponse"
                            }
                        }
                    },
                    "400": {
                        "description": "Invalid query parameter",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "Create a new customer",
                "parameters": [
                    {
                        "description": "Customer creation request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.CreateCustomerRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Customer successfully created",
                        "schema": {
                            "$ref": "#/definitions/dto.CustomerResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid request payload",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Email already registered",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/customers/{customerID}": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "Retrieve customer details",
                "parameters": [
                    {
                        "type": "integer",
                        "minimum": 1,
                        "description": "Customer ID",
                        "name": "customerID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Customer details retrieved",
                        "schema": {
                            "$ref": "#/definitions/dto.CustomerResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid customer ID format",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Customer not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "Deactivate a customer",
                "parameters": [
                    {
                        "type": "integer",
                        "minimum": 1,
                        "description": "Customer ID",
                        "name": "customerID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Customer successfully deactivated"
                    },
                    "400": {
                        "description": "Invalid customer ID",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Customer not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Customer has open loans",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/customers/{customerID}/address": {
            "put": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "Update customer address",
                "parameters": [
                    {
                        "type": "integer",
                        "minimum": 1,
                        "description": "Customer ID",
                        "name": "customerID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "New address payload",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.UpdateCustomerAddressRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Address successfully updated"
                    },
                    "400": {
                        "description": "Invalid customer ID or request payload",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Customer not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/customers/{customerID}/reactivate": {
            "put": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "Reactivate a customer",
                "parameters": [
                    {
                        "type": "integer",
                        "minimum": 1,
                        "description": "Customer ID",
                        "name": "customerID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Customer successfully reactivated"
                    },
                    "400": {
                        "description": "Invalid customer ID",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Customer not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/customers/{customerID}/loans": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Customers"
                ],
                "summary": "List a customer's loans",
                "parameters": [
                    {
                        "type": "integer",
                        "minimum": 1,
                        "description": "Customer ID",
                        "name": "customerID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Loans in creation order",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/dto.LoanResponse"
                            }
                        }
                    },
                    "404": {
                        "description": "Customer not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Create a new loan",
                "parameters": [
                    {
                        "description": "Loan creation request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.CreateLoanRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Loan successfully created",
                        "schema": {
                            "$ref": "#/definitions/dto.LoanResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid request payload or terms",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/preview": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Preview a repayment schedule",
                "parameters": [
                    {
                        "description": "Loan terms",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.LoanTermsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Generated schedule",
                        "schema": {
                            "$ref": "#/definitions/dto.ScheduleResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid terms",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Retrieve loan details",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Use 'schedule' to include installments",
                        "name": "include",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Loan details",
                        "schema": {
                            "$ref": "#/definitions/dto.LoanResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid loan ID",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}/schedule": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Retrieve a loan's repayment schedule",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Schedule with payment progress",
                        "schema": {
                            "$ref": "#/definitions/dto.ScheduleResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid loan ID",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}/disburse": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Disburse a pending loan",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Disbursed loan",
                        "schema": {
                            "$ref": "#/definitions/dto.LoanResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Loan is not pending",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}/balances": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Outstanding balances by bucket",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Outstanding balances",
                        "schema": {
                            "$ref": "#/definitions/dto.BalancesResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}/charges": {
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Assess a fee or penalty",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Charge",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.AssessChargeRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Balances after the charge",
                        "schema": {
                            "$ref": "#/definitions/dto.BalancesResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid charge",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Loan does not accept charges",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}/payments": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "List payments on a loan",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Payments, oldest first",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/dto.PaymentResponse"
                            }
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Allocates the payment penalty, then fees, then interest, then principal. Any excess is reported as unallocated.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Record a payment",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Rejects a repeated submission with 409",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Payment",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.RecordPaymentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Payment receipt",
                        "schema": {
                            "$ref": "#/definitions/dto.PaymentReceiptResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid amount or method",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Loan closed, not disbursed, or duplicate request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/loans/{loanID}/delinquency": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Reclassifies the loan as of today and returns the previous and current state.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Loans"
                ],
                "summary": "Current delinquency",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Loan ID",
                        "name": "loanID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Delinquency state",
                        "schema": {
                            "$ref": "#/definitions/dto.DelinquencyRefreshResponse"
                        }
                    },
                    "404": {
                        "description": "Loan not found",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorDetail": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                },
                "field": {
                    "type": "string"
                }
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "$ref": "#/definitions/dto.ErrorDetail"
                }
            }
        },
        "dto.TokenRequest": {
            "type": "object",
            "properties": {
                "username": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                }
            }
        },
        "dto.TokenResponse": {
            "type": "object",
            "properties": {
                "token": {
                    "type": "string"
                },
                "expiresAt": {
                    "type": "string"
                }
            }
        },
        "dto.CreateCustomerRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "phone": {
                    "type": "string"
                },
                "address": {
                    "type": "string"
                }
            }
        },
        "dto.UpdateCustomerAddressRequest": {
            "type": "object",
            "properties": {
                "address": {
                    "type": "string"
                }
            }
        },
        "dto.CustomerResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "phone": {
                    "type": "string"
                },
                "address": {
                    "type": "string"
                },
                "active": {
                    "type": "boolean"
                },
                "createdAt": {
                    "type": "string"
                },
                "updatedAt": {
                    "type": "string"
                }
            }
        },
        "dto.LoanTermsRequest": {
            "type": "object",
            "properties": {
                "principal": {
                    "type": "string",
                    "example": "120000.00"
                },
                "annualRatePercent": {
                    "type": "string",
                    "example": "12"
                },
                "interestType": {
                    "type": "string",
                    "example": "reducing_balance"
                },
                "termValue": {
                    "type": "integer",
                    "example": 12
                },
                "termUnit": {
                    "type": "string",
                    "example": "months"
                },
                "repaymentFrequency": {
                    "type": "string",
                    "example": "monthly"
                },
                "amortizationMethod": {
                    "type": "string",
                    "example": "equal_installments"
                },
                "gracePeriodDays": {
                    "type": "integer",
                    "example": 0
                },
                "startDate": {
                    "type": "string",
                    "example": "2025-01-15"
                }
            }
        },
        "dto.CreateLoanRequest": {
            "type": "object",
            "properties": {
                "customerId": {
                    "type": "integer",
                    "example": 1
                },
                "principal": {
                    "type": "string",
                    "example": "120000.00"
                },
                "annualRatePercent": {
                    "type": "string",
                    "example": "12"
                },
                "interestType": {
                    "type": "string",
                    "example": "reducing_balance"
                },
                "termValue": {
                    "type": "integer",
                    "example": 12
                },
                "termUnit": {
                    "type": "string",
                    "example": "months"
                },
                "repaymentFrequency": {
                    "type": "string",
                    "example": "monthly"
                },
                "amortizationMethod": {
                    "type": "string",
                    "example": "equal_installments"
                },
                "gracePeriodDays": {
                    "type": "integer",
                    "example": 0
                },
                "startDate": {
                    "type": "string",
                    "example": "2025-01-15"
                }
            }
        },
        "dto.RecordPaymentRequest": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "string",
                    "example": "7000.00"
                },
                "method": {
                    "type": "string",
                    "example": "bank_transfer"
                },
                "reference": {
                    "type": "string"
                },
                "paidAt": {
                    "type": "string"
                }
            }
        },
        "dto.AssessChargeRequest": {
            "type": "object",
            "properties": {
                "kind": {
                    "type": "string",
                    "example": "penalty"
                },
                "amount": {
                    "type": "string",
                    "example": "250.00"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "dto.TermsResponse": {
            "type": "object",
            "properties": {
                "principal": {
                    "type": "string"
                },
                "annualRatePercent": {
                    "type": "string"
                },
                "interestType": {
                    "type": "string"
                },
                "termValue": {
                    "type": "integer"
                },
                "termUnit": {
                    "type": "string"
                },
                "repaymentFrequency": {
                    "type": "string"
                },
                "amortizationMethod": {
                    "type": "string"
                },
                "gracePeriodDays": {
                    "type": "integer"
                },
                "startDate": {
                    "type": "string"
                }
            }
        },
        "dto.BalancesResponse": {
            "type": "object",
            "properties": {
                "principal": {
                    "type": "string"
                },
                "interest": {
                    "type": "string"
                },
                "fees": {
                    "type": "string"
                },
                "penalty": {
                    "type": "string"
                },
                "total": {
                    "type": "string"
                }
            }
        },
        "dto.DelinquencyResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "daysPastDue": {
                    "type": "integer"
                },
                "missedPayments": {
                    "type": "integer"
                }
            }
        },
        "dto.DelinquencyRefreshResponse": {
            "type": "object",
            "properties": {
                "loanId": {
                    "type": "integer"
                },
                "asOf": {
                    "type": "string"
                },
                "previous": {
                    "$ref": "#/definitions/dto.DelinquencyResponse"
                },
                "current": {
                    "$ref": "#/definitions/dto.DelinquencyResponse"
                },
                "changed": {
                    "type": "boolean"
                }
            }
        },
        "dto.InstallmentResponse": {
            "type": "object",
            "properties": {
                "number": {
                    "type": "integer"
                },
                "status": {
                    "type": "string"
                },
                "dueDate": {
                    "type": "string"
                },
                "principalDue": {
                    "type": "string"
                },
                "interestDue": {
                    "type": "string"
                },
                "totalDue": {
                    "type": "string"
                },
                "principalPaid": {
                    "type": "string"
                },
                "interestPaid": {
                    "type": "string"
                },
                "totalPaid": {
                    "type": "string"
                },
                "balance": {
                    "type": "string"
                }
            }
        },
        "dto.ScheduleSummaryResponse": {
            "type": "object",
            "properties": {
                "installments": {
                    "type": "integer"
                },
                "totalPrincipal": {
                    "type": "string"
                },
                "totalInterest": {
                    "type": "string"
                },
                "totalDue": {
                    "type": "string"
                },
                "firstDueDate": {
                    "type": "string"
                },
                "maturityDate": {
                    "type": "string"
                }
            }
        },
        "dto.ScheduleResponse": {
            "type": "object",
            "properties": {
                "summary": {
                    "$ref": "#/definitions/dto.ScheduleSummaryResponse"
                },
                "installments": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.InstallmentResponse"
                    }
                }
            }
        },
        "dto.LoanResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "customerId": {
                    "type": "integer"
                },
                "status": {
                    "type": "string"
                },
                "terms": {
                    "$ref": "#/definitions/dto.TermsResponse"
                },
                "balances": {
                    "$ref": "#/definitions/dto.BalancesResponse"
                },
                "delinquency": {
                    "$ref": "#/definitions/dto.DelinquencyResponse"
                },
                "summary": {
                    "$ref": "#/definitions/dto.ScheduleSummaryResponse"
                },
                "schedule": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.InstallmentResponse"
                    }
                },
                "disbursedAt": {
                    "type": "string"
                },
                "closedAt": {
                    "type": "string"
                },
                "createdAt": {
                    "type": "string"
                },
                "updatedAt": {
                    "type": "string"
                }
            }
        },
        "dto.AllocationResponse": {
            "type": "object",
            "properties": {
                "penalty": {
                    "type": "string"
                },
                "fees": {
                    "type": "string"
                },
                "interest": {
                    "type": "string"
                },
                "principal": {
                    "type": "string"
                },
                "total": {
                    "type": "string"
                }
            }
        },
        "dto.PaymentResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "loanId": {
                    "type": "integer"
                },
                "amount": {
                    "type": "string"
                },
                "allocation": {
                    "$ref": "#/definitions/dto.AllocationResponse"
                },
                "unallocated": {
                    "type": "string"
                },
                "method": {
                    "type": "string"
                },
                "reference": {
                    "type": "string"
                },
                "recordedBy": {
                    "type": "string"
                },
                "paidAt": {
                    "type": "string"
                }
            }
        },
        "dto.PaymentReceiptResponse": {
            "type": "object",
            "properties": {
                "payment": {
                    "$ref": "#/definitions/dto.PaymentResponse"
                },
                "loanStatus": {
                    "type": "string"
                },
                "balances": {
                    "$ref": "#/definitions/dto.BalancesResponse"
                },
                "installments": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.InstallmentResponse"
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
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
	Title:            "Loan Engine API",
	Description:      "Loan origination, amortization schedules, waterfall payment allocation and delinquency tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
