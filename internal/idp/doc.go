// Package idp talks to the external identity provider, an Azure AD style
// tenant authority, as an OAuth2 public client.
//
// Silent acquisition (AcquireTokenSilent) redeems the refresh token of the
// most recently used cached account, applies a fixed renewal margin to the
// issued expiry and persists the renewed access token through the
// credential store. Interactive sign-in (SignIn) uses the device code flow
// so it works from a terminal.
//
// Cached accounts live in idp_accounts.json next to the credential store.
package idp
