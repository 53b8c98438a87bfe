// Package crowdfund provides the session and authorization core of the
// crowdfunding platform client (investor, business and admin roles).
//
// Credentials:
//   - Decode parses a bearer credential without verifying its signature. The
//     payload is display data only; the API remains the enforcement point.
//     Malformed input yields a nil *Payload and every accessor accepts nil.
//   - IsExpired fails closed: a payload without a numeric exp is expired.
//
// Sessions:
//   - SessionStore holds the current credential and the authenticated flag.
//     It is built once at start-up and injected where needed. Expiry is not
//     folded into the authenticated flag; consumers check it lazily.
//   - Logout never blocks on the network. The backend is notified best-effort
//     and local state is always torn down.
//
// Route guarding:
//   - Guard.Evaluate is a pure function returning a Decision
//     (unauthenticated, expired, unauthorized or authorized, checked in
//     that order).
//   - GuardReactor runs the side effects of a Decision (forced logout,
//     denial notice) after evaluation, once per distinct condition.
//
// Data-backed stores live in the resource package; the HTTP collaborator in
// apiclient; the per-resource instantiations in platform.
package crowdfund
