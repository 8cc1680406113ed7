package main

// General API documentation for swaggo. Run `swag init -g cmd/llmhost/docs.go -o docs` to regenerate docs/.
//
// @title           llmhost API
// @version         1.0
// @description     Derive serving limits for compiled LLM artifacts and manage hosted inference endpoints.
//
// @contact.name   llmhost maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
