package common

// APIKeyHeaderName carries the global API password on upload requests.
const APIKeyHeaderName = "X-Api-Key"

// Headers set by a reverse proxy in front of the service.
const (
	ForwardedProtoHeaderName = "X-Forwarded-Proto"
	ForwardedPathHeaderName  = "X-Forwarded-Path"
)

// RequestIDHeaderName echoes the per-request id assigned by the HTTP layer.
const RequestIDHeaderName = "X-Request-Id"

const (
	// StemLength is the length of the random public identifier.
	StemLength = 8
	// SecretLength is the length of the plaintext deletion secret.
	SecretLength = 24
	// DefaultMaxReserveAttempts bounds the allocation retry loop.
	DefaultMaxReserveAttempts = 256
)

// DeletedMessage is the body returned by a successful deletion.
const DeletedMessage = "File has been deleted."
