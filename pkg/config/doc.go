// Package config loads campusgate configuration from defaults, an optional
// YAML file and environment variables.
//
// # Sources
//
// Settings are applied in order: built-in defaults, the YAML file named by
// CAMPUSGATE_CONFIG_FILE, then CAMPUSGATE_* environment variables. Later
// sources win.
//
//	server:
//	  port: "8080"
//	  cors_origins: ["https://portal.example.edu"]
//	auth:
//	  access_token_ttl: 1h
//	  refresh_token_ttl: 168h
//	database:
//	  url: postgres://campusgate@db/campusgate?sslmode=require
//	redis:
//	  url: redis://cache:6379/0
//
// Secrets are normally supplied through the environment:
//
//	CAMPUSGATE_ACCESS_TOKEN_SECRET="..."
//	CAMPUSGATE_REFRESH_TOKEN_SECRET="..."
//
// # Validation
//
// LoadConfig fails with a wrapped *auth.ConfigurationError when a token
// secret is missing, both secrets are equal, a TTL is not positive, or a
// cookie would expire before the token it carries.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
package config
