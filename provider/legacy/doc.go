// Package legacy federates users from a legacy authentication facade into
// the local go-auth store.
//
// The facade exposes two endpoints the bridge relies on: GET /users/<name>
// returns a profile and POST /login validates a username and password. The
// bridge never writes back to it.
//
// Lookups go through a positive ProfileCache (bounded LRU with TTL by
// default, unbounded on request). Email lookups only see what is cached;
// the facade has no email endpoint, so a user never fetched by username can
// not be found by email.
//
// A successful remote login provisions or refreshes the local record
// (Provisioner). When the login succeeds but the profile can not be fetched
// the login is still accepted and reported as OutcomeValidatedNoSync.
package legacy
