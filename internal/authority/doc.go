// Package authority holds the stateless clients that exchange credentials for tokens with
// remote identity providers: GitHub, Azure AD / Microsoft accounts, and Azure DevOps (VSTS).
//
// Expected negative outcomes (401, a two-factor challenge, a timeout, a malformed body) never
// surface as errors. They are logged and reported as ResultFailure, a nil token or false so
// the broker can move on to its next strategy.
package authority
