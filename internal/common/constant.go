// Package common contains shared constants and sentinel errors used across
// cardkeeper components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// Roles carried in access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
