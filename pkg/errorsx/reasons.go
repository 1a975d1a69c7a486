package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonConfigFetch ReasonCode = "config_fetch"
	ReasonRuleCompile ReasonCode = "rule_compile"

	ReasonProviderAuth     ReasonCode = "provider_auth"
	ReasonProviderQuota    ReasonCode = "provider_quota"
	ReasonProviderNetwork  ReasonCode = "provider_network"
	ReasonProviderResponse ReasonCode = "provider_response"

	ReasonArtifactWrite ReasonCode = "artifact_write"
	ReasonPlaybackSend  ReasonCode = "playback_send"
	ReasonGatewayDecode ReasonCode = "gateway_decode"
)
