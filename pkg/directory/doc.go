// Package directory resolves verified Telegram identities to local user records.
//
// # Overview
//
// A Directory answers a single question: which local user, with which role and
// group, is bound to a Telegram id. The session issuer consults it on every login
// so role and group always come from storage, never from client input.
//
// PostgresDirectory keeps users and training groups in PostgreSQL. Migrate creates
// the schema (user_role enum, groups and users tables) and records applied
// versions in directory_migrations.
//
// CachedDirectory puts an expiring LRU in front of any Store. Only successful
// lookups are cached; Register drops the cached entry for the affected user.
//
// # Usage
//
//	dir, err := directory.NewPostgresDirectory(db)
//	if err != nil {
//		return err
//	}
//	if err := directory.Migrate(ctx, db, logger); err != nil {
//		return err
//	}
//	cached := directory.NewCachedDirectory(dir, directory.DefaultCacheConfig())
//	user, err := cached.LookupByTelegramID(ctx, "42")
//	if errors.Is(err, directory.ErrUserNotFound) {
//		// not registered
//	}
//
// # Related Packages
//
//   - pkg/session: Issues tokens from directory records
//   - pkg/api: Registration and access code endpoints
package directory
