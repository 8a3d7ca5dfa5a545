// Package client is the browser-side half of the page lifecycle, usable
// from Go for tests and tooling.
//
// Resume extracts the snapshot a server embedded with render.RenderDocument
// and hydrates the page without a fetch. Client.Navigate performs later
// navigations through a channel.Wire, so page code is identical on both
// sides of the network.
package client
