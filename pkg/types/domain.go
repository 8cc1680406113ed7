package types

// ServingConfig is the JSON view of a derived serving configuration.
type ServingConfig struct {
	// Identifier of the compiled model artifact.
	// example: HuggingFaceH4/zephyr-7b-beta
	ModelID string `json:"model_id" example:"HuggingFaceH4/zephyr-7b-beta"`
	// Batch size the artifact was compiled with.
	// example: 4
	BatchSize int `json:"batch_size" example:"4"`
	// Sequence length the artifact was compiled with.
	// example: 2048
	SequenceLength int `json:"sequence_length" example:"2048"`
	// Maximum prompt length in tokens.
	// example: 1512
	MaxInputLength int `json:"max_input_length" example:"1512"`
	// Maximum total tokens (prompt + generated) per request.
	// example: 2048
	MaxTotalTokens int `json:"max_total_tokens" example:"2048"`
	// Concurrent requests the endpoint admits; equals the batch size.
	// example: 4
	MaxConcurrentRequests int `json:"max_concurrent_requests" example:"4"`
	// Token budget for prompt prefill across a batch.
	// example: 4096
	MaxBatchPrefillTokens int `json:"max_batch_prefill_tokens" example:"4096"`
	// Token budget across a batch.
	// example: 8192
	MaxBatchTotalTokens int `json:"max_batch_total_tokens" example:"8192"`
	// Environment block handed to the hosting container.
	Env map[string]string `json:"env,omitempty"`
}

// Endpoint describes a provisioned hosting endpoint.
type Endpoint struct {
	// Endpoint name.
	// example: zephyr-7b-4f2a9c
	Name string `json:"name" example:"zephyr-7b-4f2a9c"`
	// Name of the hosted model object backing the endpoint.
	ModelName string `json:"model_name"`
	// Name of the endpoint configuration.
	ConfigName string `json:"config_name"`
	// Lifecycle status reported by the control plane.
	// example: InService
	Status string `json:"status" example:"InService"`
	// Reason reported by the control plane when Status is Failed.
	FailureReason string `json:"failure_reason,omitempty"`
	// Container image the endpoint runs.
	Image string `json:"image"`
	// Instance type the endpoint runs on.
	// example: ml.inf2.xlarge
	InstanceType string `json:"instance_type" example:"ml.inf2.xlarge"`
	// Serving limits applied at provisioning time.
	Serving ServingConfig `json:"serving"`
	// Creation time (unix seconds).
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
}
