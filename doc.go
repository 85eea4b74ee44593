// Package access implements the access code lifecycle and encrypted session
// authentication for an admin managed content portal.
//
// Access codes:
//   - Admins mint short, human typeable single-use codes with a bounded
//     registration window. A game client claims a code exactly once, binding
//     its identity (uid, name, server, avatar) and a package snapshot to the
//     row; later calls with the same identity verify the binding instead.
//   - The claim transition is a database enforced compare-and-swap
//     (UPDATE ... WHERE used_at IS NULL), so two concurrent first-claims of
//     the same code can never both win.
//   - Expired unclaimed codes are purged opportunistically before create and
//     redeem; bound codes are never deleted by this package.
//
// Sessions:
//   - TokenService issues HMAC signed JWTs for two audiences that are never
//     interchangeable: admins (role claim) and members (type=member).
//   - SessionCipher seals {token, user snapshot} with AES-256-GCM into a
//     base64url cookie value so client side script never sees the raw token.
//   - SessionResolver recovers a principal cookie first, then bearer header.
//     A cookie that fails to open is hostile, not absent: resolution fails
//     without falling back to the header.
//
// The HTTP surface is expressed over goliatone/go-router; persistence over
// uptrace/bun. See middleware/sessionware for the route middleware.
package access
