// Package postgres implements the campusgate stores on PostgreSQL (lib/pq)
// and the Redis connection shared by the rate limiter and the API key cache.
//
//	db, err := postgres.Connect(ctx, postgres.ConnectionConfig{URL: url, MaxOpenConns: 20})
//	applied, err := postgres.Migrate(ctx, db)
//	creds := postgres.NewCredentialStore(db)      // auth.CredentialStore
//	records := postgres.NewAcademicsStore(db)     // academics.Store
//
// Driver errors are translated: sql.ErrNoRows and foreign key violations
// become auth.ErrNotFound, unique violations become auth.ErrConflict.
//
// Migrations are embedded SQL files applied in name order, each in its own
// transaction under a transaction-scoped advisory lock, and recorded in
// schema_migrations.
package postgres
