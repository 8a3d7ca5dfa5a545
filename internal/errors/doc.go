// Package errors provides structured, actionable errors for startup and
// configuration failures.
//
// Every fatal condition the server can hit before it accepts traffic
// (malformed config.toml, illegal site names, missing themes, failed
// migrations) has a registered code. The CLI prints them with Format.
//
// # Error Categories
//
//   - config: config.toml cannot be read or is inconsistent
//   - bootstrap: a site cannot be provisioned
//   - storage: a site database cannot be opened or migrated
//   - runtime: listeners and exporters
//
// # Usage
//
//	err := errors.New(errors.CodeSiteName).WithSubject("my blog")
//	errors.Fprint(os.Stderr, err)
//	// ERROR E110: Illegal site name
//	//
//	//   my blog
//	//
//	//   Hint: Site names may only contain letters, digits, '-' and '_'.
package errors
