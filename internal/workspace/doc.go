// Package workspace manages the scratch directory of a publish run. Remote
// manifests are staged there before merging, so nothing downloaded ever lands
// in the output directory that gets uploaded.
package workspace
