// Package secret defines the value types that credbroker resolves, caches and persists.
//
// Two kinds of secret exist and every component above this package keeps them apart:
//
//   - Credential: a username/password pair, used for HTTP basic authentication.
//   - Token: an opaque bearer value tagged with a TokenType and an optional target identity.
//
// Both are immutable. Construct them with NewCredential and NewToken, which enforce the
// length limits accepted by the OS credential stores.
//
// # Storage Keys
//
// TargetName maps a TargetURI and a namespace onto the key used by the in-memory cache and
// the durable secure store:
//
//	secret.TargetName(t, "git")       // git:https://example.com
//	secret.TargetName(t, "git")       // git:https://example.com:8443 (non-default port)
//	secret.PathedTargetName(t, "git") // git:https://example.com/org/repo
//
// Keys are lower-cased and never depend on the query string. A Credential and a Token for
// the same target share a key; the secure store tells them apart by the entry's name tag.
//
// # Token Wire Format
//
// SerializeToken writes the layout shared with every other client of the same store:
//
//	[0]      TokenType tag
//	[1..17)  target identity GUID, Windows in-memory byte order
//	[17..)   UTF-8 token value
//
// DeserializeToken reads that layout and falls back to treating the whole buffer as a legacy
// UTF-8 value when the tag does not match or the buffer is too short.
package secret
