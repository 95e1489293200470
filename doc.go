// Package main provides the go-bundlefix CLI tool for resolving
// CFBundleIdentifier collisions in Xcode projects and IPA archives.
//
// For the library API, see the bundlefix subpackage:
//
//	import "github.com/quikapp/go-bundlefix/pkg/bundlefix"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/quikapp/go-bundlefix@latest
package main
