// Package docs holds the OpenAPI document for the llmhost HTTP API.
// Regenerate with `swag init -g cmd/llmhost/docs.go -o docs` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "llmhost maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/serving-config": {
            "post": {
                "description": "Computes the serving limits and container environment for a compiled model.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["serving"],
                "summary": "Derive serving configuration",
                "parameters": [
                    {
                        "description": "Compile-time parameters",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.DeriveRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ServingConfig"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/endpoints": {
            "get": {
                "produces": ["application/json"],
                "tags": ["endpoints"],
                "summary": "List endpoints",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EndpointsResponse"}}
                }
            },
            "post": {
                "description": "Provisions a hosted endpoint. By default the call blocks until the endpoint is in service; pass wait=false to return 202 immediately.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["endpoints"],
                "summary": "Deploy an endpoint",
                "parameters": [
                    {
                        "description": "Deployment",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.DeployRequest"}
                    },
                    {
                        "type": "boolean",
                        "description": "Block until in service (default true)",
                        "name": "wait",
                        "in": "query"
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.Endpoint"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.Endpoint"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/endpoints/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["endpoints"],
                "summary": "Describe an endpoint",
                "parameters": [
                    {"type": "string", "description": "Endpoint name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Endpoint"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Deletes the endpoint, its configuration and its model.",
                "tags": ["endpoints"],
                "summary": "Tear down an endpoint",
                "parameters": [
                    {"type": "string", "description": "Endpoint name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/endpoints/{name}/generate": {
            "post": {
                "description": "Sends a prompt, or chat messages rendered with a chat template, to a live endpoint.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["endpoints"],
                "summary": "Generate text",
                "parameters": [
                    {"type": "string", "description": "Endpoint name", "name": "name", "in": "path", "required": true},
                    {
                        "description": "Prompt",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.DeriveRequest": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string", "example": "HuggingFaceH4/zephyr-7b-beta"},
                "batch_size": {"type": "integer", "example": 4},
                "sequence_length": {"type": "integer", "example": 2048},
                "max_input_length": {"type": "integer", "example": 1512},
                "input_margin": {"type": "integer", "example": 536}
            }
        },
        "types.DeployRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "model_id": {"type": "string", "example": "HuggingFaceH4/zephyr-7b-beta"},
                "batch_size": {"type": "integer", "example": 4},
                "sequence_length": {"type": "integer", "example": 2048},
                "max_input_length": {"type": "integer", "example": 1512},
                "input_margin": {"type": "integer", "example": 536},
                "instance_type": {"type": "string", "example": "ml.inf2.xlarge"},
                "instance_count": {"type": "integer", "example": 1},
                "health_check_timeout_seconds": {"type": "integer", "example": 1800},
                "env": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "types.ServingConfig": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string", "example": "HuggingFaceH4/zephyr-7b-beta"},
                "batch_size": {"type": "integer", "example": 4},
                "sequence_length": {"type": "integer", "example": 2048},
                "max_input_length": {"type": "integer", "example": 1512},
                "max_total_tokens": {"type": "integer", "example": 2048},
                "max_concurrent_requests": {"type": "integer", "example": 4},
                "max_batch_prefill_tokens": {"type": "integer", "example": 4096},
                "max_batch_total_tokens": {"type": "integer", "example": 8192},
                "env": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "types.Endpoint": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "zephyr-7b-4f2a9c"},
                "model_name": {"type": "string"},
                "config_name": {"type": "string"},
                "status": {"type": "string", "example": "InService"},
                "failure_reason": {"type": "string"},
                "image": {"type": "string"},
                "instance_type": {"type": "string", "example": "ml.inf2.xlarge"},
                "serving": {"$ref": "#/definitions/types.ServingConfig"},
                "created_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.EndpointsResponse": {
            "type": "object",
            "properties": {
                "endpoints": {"type": "array", "items": {"$ref": "#/definitions/types.Endpoint"}}
            }
        },
        "types.Message": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "example": "user"},
                "content": {"type": "string", "example": "What is deep learning?"}
            }
        },
        "types.GenerationParameters": {
            "type": "object",
            "properties": {
                "max_new_tokens": {"type": "integer", "example": 256},
                "do_sample": {"type": "boolean", "example": true},
                "temperature": {"type": "number", "example": 0.7},
                "top_k": {"type": "integer", "example": 50},
                "top_p": {"type": "number", "example": 0.95},
                "repetition_penalty": {"type": "number", "example": 1.03},
                "stop": {"type": "array", "items": {"type": "string"}},
                "return_full_text": {"type": "boolean"}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.Message"}},
                "template": {"type": "string", "example": "zephyr"},
                "parameters": {"$ref": "#/definitions/types.GenerationParameters"}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "endpoint": {"type": "string", "example": "zephyr-7b-4f2a9c"},
                "prompt": {"type": "string"},
                "generated_text": {"type": "string"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid JSON body"},
                "code": {"type": "integer", "example": 400}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "llmhost API",
	Description:      "Derive serving limits for compiled LLM artifacts and manage hosted inference endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
