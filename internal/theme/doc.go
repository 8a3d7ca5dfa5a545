// Package theme holds the themes compiled into the binary and the asset
// directories that accompany them.
//
// A Theme contributes the public page set of a blog site and a base
// stylesheet. Its asset directory (declared under [resource] themes in
// config.toml) is served below /theme/ and may carry a theme.yaml manifest:
//
//	title: Ivy Leaf
//	description: A quiet theme for long posts.
//	stylesheets:
//	  - css/extra.css
//
// Stylesheets listed in the manifest are appended to the base stylesheet
// and served as one bundle. In development mode a Watcher reloads the
// bundle when the directory changes and a ReloadHub tells connected
// browsers to refresh.
package theme
