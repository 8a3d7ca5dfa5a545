// Package server is the HTTP front of lightletter.
//
// A Dispatcher picks the site by the exact Host header, redirects alias
// hosts to the primary host and answers unknown hosts with 404. Each blog
// site gets its own chi router:
//
//	/files/*                  uploaded files
//	/theme/*                  theme asset directory
//	/static/lightletter.css   theme stylesheet bundle
//	/rpc/*                    request channel endpoint (POST only)
//	/_lightletter/reload      live reload websocket (dev only)
//	/backstage...             backstage pages
//	everything else           theme pages
//
// Static sites serve their static/ directory.
package server
