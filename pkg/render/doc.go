// Package render writes the HTML document shell around prerendered pages.
//
// The body markup comes from a page instance. The document adds the head,
// the encoded page snapshot and the loader call that lets the client bundle
// resume the page without fetching again:
//
//	var body bytes.Buffer
//	res.Instance.Render(&body)
//	enc, _ := res.Snapshot.Encode()
//	render.RenderDocument(w, render.Document{
//	    Title:       res.Snapshot.Meta.Title,
//	    StyleSheets: []string{"/static/lightletter.css"},
//	    Body:        body.Bytes(),
//	    Snapshot:    enc,
//	})
//
// The snapshot lives in a script element with id SnapshotElementID and
// type application/octet-stream, so browsers never execute it.
package render
