package consts

// App name constants
const (
	AppName      = "keytap"
	AgentAppName = "keytap-agent"
)

// Environment variables recognized by the agent
const (
	// EnvCapability overrides the agent's capability probe result
	// ('granted' or 'denied'). Used by tests and demos to reproduce
	// permission failures without touching OS settings.
	EnvCapability = "KEYTAP_CAPABILITY"
)
