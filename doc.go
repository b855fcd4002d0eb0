// Package auth is the local side of the legacy federation bridge: the user
// store federated accounts are provisioned into, the login chain and the
// JSON HTTP surface.
//
// Local store:
//   - Users is a bun backed repository over the users table. Usernames are
//     unique (see EnsureSchema) and CreateLocalUser is insert-if-absent, so
//     concurrent provisioning of the same username converges on one row.
//   - UpdateCredential hashes the plaintext password with bcrypt before it is
//     stored.
//
// Login chain:
//   - ChainProvider composes IdentityProviders. The host puts the legacy
//     federation provider first and the local UserProvider second, so users
//     already provisioned can still log in while the legacy facade is down.
//   - Auther verifies through the chain, emits ActivityEvents and issues JWTs.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package auth
