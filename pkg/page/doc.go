// Package page implements the prerender/hydrate lifecycle of routable
// pages.
//
// A page type is a Component with three steps:
//
//	Fetch(ctx, args) (D, MetaData)  // may call the request channel
//	Apply(D)                         // push data into live state
//	Render(w)                        // write markup
//
// # Server path
//
// Set.Prerender resolves the path, constructs a fresh component, runs
// Fetch through the in-process channel, applies the data and captures the
// fetched value as a Snapshot. The HTTP layer renders the instance and
// embeds Snapshot.Encode() in the document.
//
// # Client path
//
// Set.Hydrate resolves the same path, decodes the snapshot and applies it
// to a fresh component. Fetch is never called, and the resulting state
// equals the one Prerender produced.
//
// # Not found
//
// Every Set has a mandatory default page. Paths that match nothing run
// it through the full lifecycle with Result.Found == false, so the HTTP
// layer can send a themed 404.
package page
