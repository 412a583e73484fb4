package config

const (
	defaultClientEndpoint = "http://localhost:8080/functions/v1/career-advisor"
	defaultClientTimeout  = "5m"

	defaultRelayListen   = ":8080"
	defaultRelayUpstream = "https://ai.gateway.lovable.dev/v1"
	defaultRelayModel    = "google/gemini-2.5-flash"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "advisor.turns"

	// DefaultSystemPrompt frames the upstream model as the career advisor.
	DefaultSystemPrompt = "You are an expert career advisor for Indian students. " +
		"Help with stream selection after 10th and 12th, entrance exams such as JEE, NEET and CUET, " +
		"college choices, scholarships and emerging career fields. " +
		"Give practical, encouraging and specific guidance, and use markdown lists where they help."
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Endpoint: defaultClientEndpoint,
			Timeout:  defaultClientTimeout,
		},
		Relay: RelayConfig{
			Listen:       defaultRelayListen,
			Upstream:     defaultRelayUpstream,
			Model:        defaultRelayModel,
			SystemPrompt: DefaultSystemPrompt,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Log: LogConfig{
			Pretty: true,
		},
	}
}
