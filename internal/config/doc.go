// Package config loads the sites configuration.
//
// The configuration is stored in config.toml at the sites root and read
// with viper. Every key can be overridden from the environment with the
// LIGHTLETTER_ prefix, dots becoming underscores (LIGHTLETTER_LOG_LEVEL).
//
// # Configuration File Structure
//
//	dev = false
//
//	[net]
//	ip = "0.0.0.0"
//	port = [8080, 8081]
//
//	[db]
//	dir = "db"
//	max_open_conns = 8
//	checkout_timeout = "5s"
//
//	[resource.themes]
//	ivy-leaf = "themes/ivy-leaf"
//
//	[session]
//	secret = "change-me"
//	sweep_interval = "10m"
//
//	[log]
//	level = "info"
//	format = "json"
//
//	[[site]]
//	name = "blog"
//	type = "blog"
//	host = "blog.example.com"
//	alias = ["www.blog.example.com"]
//	theme = "ivy-leaf"
//
//	[[site]]
//	name = "home"
//	type = "static"
//	host = "example.com"
//
// # Usage
//
//	cfg, err := config.Load(config.ResolveRoot(rootFlag))
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    errors.Fprint(os.Stderr, err)
//	}
package config
