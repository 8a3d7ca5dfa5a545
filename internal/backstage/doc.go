// Package backstage is the administration area every blog site carries:
// the account and post RPC handlers under /backstage/ and the page set
// served below /backstage.
package backstage
