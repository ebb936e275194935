// Package auth implements a user-authentication and account-management
// backend: registration, credential login, JWT access tokens with rotating
// refresh tokens, and administrative user management.
//
// Token lifecycle:
//   - TokenEngine mints short-lived HS512 access tokens and opaque refresh
//     tokens. Refresh tokens are single use: redeeming one revokes it before
//     the replacement pair is minted, and the store-level conditional revoke
//     guarantees only one concurrent redemption can win.
//   - A user tracks at most one refresh token. A new login revokes the
//     previous live token and purges dead rows.
//
// Login decisions:
//   - LoginFlow resolves the identifier (email shaped or username), gates on
//     account status (only active accounts may sign in), verifies the bcrypt
//     credential via the store, then delegates minting to the TokenEngine and
//     records the last-login timestamp.
//
// Persistence:
//   - The flows depend on the UserStore and RefreshTokenStore capability
//     interfaces. Bun-backed implementations live in the repo_* files; any
//     store honoring the conditional-revoke contract can replace them.
package auth
