package types

// DeriveRequest is the body of POST /serving-config.
type DeriveRequest struct {
	// Identifier of the compiled model artifact.
	// example: HuggingFaceH4/zephyr-7b-beta
	ModelID string `json:"model_id" example:"HuggingFaceH4/zephyr-7b-beta"`
	// example: 4
	BatchSize int `json:"batch_size" example:"4"`
	// example: 2048
	SequenceLength int `json:"sequence_length" example:"2048"`
	// Optional max prompt length; defaults to sequence_length minus input_margin.
	// example: 1512
	MaxInputLength int `json:"max_input_length,omitempty" example:"1512"`
	// Optional reserve for generated tokens when max_input_length is omitted.
	// example: 536
	InputMargin int `json:"input_margin,omitempty" example:"536"`
}

// DeployRequest is the body of POST /endpoints.
type DeployRequest struct {
	DeriveRequest
	// Optional endpoint name. Generated from the model id when empty.
	Name string `json:"name,omitempty"`
	// example: ml.inf2.xlarge
	InstanceType string `json:"instance_type,omitempty" example:"ml.inf2.xlarge"`
	// example: 1
	InstanceCount int `json:"instance_count,omitempty" example:"1"`
	// Seconds to wait for the endpoint to pass its health check.
	// example: 1800
	HealthCheckTimeoutSeconds int `json:"health_check_timeout_seconds,omitempty" example:"1800"`
	// Additional container environment. Cannot override derived limits.
	Env map[string]string `json:"env,omitempty"`
}

// Message is one chat turn.
type Message struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: What is deep learning?
	Content string `json:"content" example:"What is deep learning?"`
}

// GenerateRequest is the body of POST /endpoints/{name}/generate.
// Exactly one of Prompt or Messages must be set.
type GenerateRequest struct {
	// Raw prompt text.
	Prompt string `json:"prompt,omitempty"`
	// Chat messages rendered with the endpoint's chat template.
	Messages []Message `json:"messages,omitempty"`
	// Chat template name (llama-2, llama-3, chatml, zephyr, mistral).
	// example: zephyr
	Template string `json:"template,omitempty" example:"zephyr"`
	// Generation parameters forwarded to the endpoint.
	Parameters GenerationParameters `json:"parameters,omitempty"`
}

// GenerationParameters mirror the text-generation parameters accepted by the hosted server.
type GenerationParameters struct {
	// example: 256
	MaxNewTokens int `json:"max_new_tokens,omitempty" example:"256"`
	// example: true
	DoSample bool `json:"do_sample,omitempty" example:"true"`
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// example: 50
	TopK int `json:"top_k,omitempty" example:"50"`
	// example: 0.95
	TopP float64 `json:"top_p,omitempty" example:"0.95"`
	// example: 1.03
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" example:"1.03"`
	Stop []string `json:"stop,omitempty"`
	// Return the prompt along with the generation.
	ReturnFullText bool `json:"return_full_text,omitempty"`
}

// GenerateResponse is returned by POST /endpoints/{name}/generate.
type GenerateResponse struct {
	// example: zephyr-7b-4f2a9c
	Endpoint string `json:"endpoint" example:"zephyr-7b-4f2a9c"`
	// Prompt actually sent (after chat-template rendering).
	Prompt string `json:"prompt"`
	// Generated text.
	GeneratedText string `json:"generated_text"`
}

// EndpointsResponse wraps the list returned by GET /endpoints.
type EndpointsResponse struct {
	Endpoints []Endpoint `json:"endpoints"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
