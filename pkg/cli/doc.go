// Package cli implements campusgate-cli, the operator tool.
//
// # Commands
//
// matrix: Print the permission matrix derived from the route table
//
//	campusgate-cli matrix --format yaml
//	campusgate-cli matrix --format table
//
// routes: List every route with its roles, API key and rate limit flags
//
//	campusgate-cli routes
//
// hash-key: Print the stored hash of a key
//
//	campusgate-cli hash-key cg_0123...
//
// create-admin: Create an Admin account
//
//	CAMPUSGATE_ADMIN_PASSWORD=... campusgate-cli create-admin \
//		--email registrar@example.edu \
//		--full-name "Registrar Office"
//
// migrate: Apply pending migrations
//
//	campusgate-cli migrate
//	campusgate-cli migrate --list
//
// audit: Search the audit log
//
//	campusgate-cli audit --type auth.login_failed --since 1h
//
// purge-keys: Delete expired API keys once
//
//	campusgate-cli purge-keys
//
// Commands that touch the database read the same CAMPUSGATE_* configuration
// as the server.
package cli
