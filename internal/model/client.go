package model

// ClientHeader identifies the storefront session calling the catalog API.
// Format: platform="terminal", version="6.9", session="<uuid>" (RFC 8941 Dictionary).
const ClientHeader = "Storefront-Client"

// ClientInfo is the decoded ClientHeader.
type ClientInfo struct {
	Platform string
	Version  string
	Session  string
}
