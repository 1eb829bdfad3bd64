// Package auth issues and validates the bearer tokens that guard the
// objrecord inspection API.
//
// Tokens are HS256 JWTs signed with the configured api.auth.jwt_secret,
// carrying a subject, an issuer of "objrecord", a unique id and an expiry.
// They are minted by the `objrecord token` command and checked on every
// protected request; there is no user store and no refresh flow.
package auth
