// Package umbraco implements a client for the Umbraco CMS management API.
//
// The client owns the base endpoint and back-office credentials, obtains and
// caches a bearer token via the OAuth2 client-credentials grant, and performs
// generic JSON calls and multipart binary uploads. Transport and HTTP-status
// failures are normalized into the typed errors in errors.go.
package umbraco
