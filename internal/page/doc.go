// Package page holds the in-memory page tree built from a content directory.
//
// Pages live in an arena owned by Tree and refer to each other by Ref. A page
// owns its children exclusively; the parent index stored on every node is a
// lookup aid (for composing titles and the like) and never drives traversal.
// A Tree is built and mutated by one goroutine only.
package page
