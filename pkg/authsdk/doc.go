// Package authsdk is the Go client for the authgate service.
//
// Every action responds with a uniform envelope; business failures ride a
// 200 transport status and are distinguished by the envelope code, which
// this package surfaces as a typed *APIError. Use Client for the
// unauthenticated actions and Session for calls that need a logged-in
// user; sessions refresh their access token transparently.
package authsdk
