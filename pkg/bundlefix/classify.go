package bundlefix

import (
	"path"
	"strings"
)

// Category is the semantic kind of a build target or bundle, used to pick
// its unique identifier suffix.
type Category string

const (
	CategoryMain                Category = "main"
	CategoryTests               Category = "tests"
	CategoryWidget              Category = "widget"
	CategoryNotificationService Category = "notificationservice"
	CategoryExtension           Category = "extension"
	CategoryShareExtension      Category = "shareextension"
	CategoryIntents             Category = "intents"
	CategoryWatchApp            Category = "watchkitapp"
	CategoryWatchExtension      Category = "watchkitextension"
	CategoryFramework           Category = "framework"
	CategoryUnknown             Category = "unknown"
)

// Xcode product type identifiers, as they appear in project.pbxproj.
const (
	productTypeApplication = "com.apple.product-type.application"
	productTypeFramework   = "com.apple.product-type.framework"
)

// Extension point identifiers, as they appear under
// NSExtension/NSExtensionPointIdentifier in an extension's Info.plist.
const (
	extensionPointWidget        = "com.apple.widgetkit-extension"
	extensionPointNotifications = "com.apple.usernotifications.service"
	extensionPointShare         = "com.apple.share-services"
	extensionPointIntents       = "com.apple.intents-service"
)

// Signals carries whatever classification evidence is available for one
// target or bundle. A project target has Name, ProductType and HasTestHost;
// a bundle inside an extracted IPA has Name, Path and (for extensions)
// ExtensionPoint. Absent fields are left zero.
type Signals struct {
	Name           string // target name or bundle file stem
	ProductType    string // Xcode product type, project flow only
	ExtensionPoint string // NSExtensionPointIdentifier, archive flow only
	Path           string // bundle path relative to archive root, archive flow only
	HasTestHost    bool   // TEST_HOST or BUNDLE_LOADER build setting present
}

// Classify maps classification signals to a Category. Rules are priority
// ordered and the first match wins; the ordering matters because names can
// be ambiguous (a "NotificationTestHelper" target is a test bundle, not a
// notification service). Classification never fails: signals that match
// nothing fall through to main (application product) or unknown.
func Classify(s Signals) Category {
	ext := path.Ext(s.Path)

	if isTestProduct(s.ProductType) || s.HasTestHost || ext == ".xctest" ||
		strings.Contains(s.Name, "Test") {
		return CategoryTests
	}

	if s.ExtensionPoint == extensionPointWidget || strings.Contains(s.Name, "Widget") {
		return CategoryWidget
	}

	if s.ExtensionPoint == extensionPointNotifications || strings.Contains(s.Name, "Notification") {
		return CategoryNotificationService
	}

	if strings.Contains(s.ProductType, "watchapp") || (ext == ".app" && inWatchContext(s.Path)) {
		return CategoryWatchApp
	}
	if isWatchExtensionProduct(s.ProductType) || (ext == ".appex" && inWatchContext(s.Path)) {
		return CategoryWatchExtension
	}

	if s.ExtensionPoint == extensionPointShare || strings.Contains(s.Name, "Share") {
		return CategoryShareExtension
	}
	if s.ExtensionPoint == extensionPointIntents || strings.Contains(s.Name, "Intents") {
		return CategoryIntents
	}

	if s.ProductType == productTypeFramework || ext == ".framework" {
		return CategoryFramework
	}

	// Any remaining extension product or .appex bundle with no more
	// specific signal.
	if strings.Contains(s.ProductType, "app-extension") || s.ExtensionPoint != "" || ext == ".appex" {
		return CategoryExtension
	}

	if s.ProductType == productTypeApplication || ext == ".app" ||
		(s.ProductType == "" && s.Path == "") {
		return CategoryMain
	}

	return CategoryUnknown
}

func isTestProduct(productType string) bool {
	return strings.Contains(productType, "bundle.unit-test") ||
		strings.Contains(productType, "bundle.ui-testing")
}

func isWatchExtensionProduct(productType string) bool {
	return strings.Contains(productType, "watchkit") && strings.Contains(productType, "extension")
}

// inWatchContext reports whether a bundle path sits inside a watch product:
// either under a Watch/ directory or inside an .app whose name marks it as
// a watch app.
func inWatchContext(bundlePath string) bool {
	for _, seg := range strings.Split(bundlePath, "/") {
		if seg == "Watch" {
			return true
		}
		if strings.HasSuffix(seg, ".app") && strings.Contains(seg, "Watch") {
			return true
		}
	}
	return false
}
