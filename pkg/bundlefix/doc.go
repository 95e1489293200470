// Package bundlefix resolves CFBundleIdentifier collisions in Xcode
// projects and built IPA archives.
//
// Apple rejects uploads where two bundles inside one IPA share a bundle
// identifier, which happens easily when frameworks, extensions and test
// bundles inherit the main app's identifier. This package applies one
// deterministic rule table at two artifact granularities:
//
//   - PatchProject rewrites PRODUCT_BUNDLE_IDENTIFIER build settings in a
//     project.pbxproj, preserving every other byte of the file.
//   - PatchArchive rewrites CFBundleIdentifier in every Info.plist of an
//     extracted IPA tree, then verifies no duplicates remain.
//
// Both flows classify each target or bundle (main app, tests, widget,
// notification service, watch app, framework, ...) and derive its
// identifier from a single base identifier, so runs are idempotent.
// ExtractIPA and RepackIPA provide the surrounding extract -> patch ->
// repack -> verify pipeline.
//
// # Basic usage
//
// Fix a project file:
//
//	result, err := bundlefix.PatchProject("ios/Runner.xcodeproj/project.pbxproj", "com.example.app")
//
// Fix an IPA:
//
//	dir, err := bundlefix.ExtractIPA("build/Runner.ipa")
//	defer os.RemoveAll(dir)
//	result, err = bundlefix.PatchArchive(dir, "com.example.app")
//	err = bundlefix.RepackIPA(dir, "build/Runner-fixed.ipa")
//
// All failures are returned as structured errors; see errors.go for the
// taxonomy.
package bundlefix
