package relay

import "time"

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Credential, when set, must be presented by clients as
	// "Authorization: Bearer <Credential>". Empty disables the check.
	Credential string

	// UpstreamURL is the base URL of an OpenAI-compatible API
	// (e.g., "https://ai.gateway.lovable.dev/v1"). The relay posts to
	// UpstreamURL + "/chat/completions".
	UpstreamURL string

	// UpstreamKey is sent to the upstream as a bearer token.
	UpstreamKey string

	// Model is the upstream model name.
	Model string

	// SystemPrompt is prepended to every conversation.
	SystemPrompt string

	// UpstreamTimeout bounds one upstream exchange including the stream.
	// Defaults to 5 minutes.
	UpstreamTimeout time.Duration
}
