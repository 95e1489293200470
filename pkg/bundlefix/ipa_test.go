package bundlefix

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"howett.net/plist"
)

// buildExtractedTree lays out a minimal extracted IPA for repack tests.
func buildExtractedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	appDir := filepath.Join(root, "Payload", "Demo.app")
	if err := os.MkdirAll(filepath.Join(appDir, "Frameworks", "Core.framework"), 0755); err != nil {
		t.Fatal(err)
	}

	info := map[string]interface{}{
		"CFBundleIdentifier": "com.demo.app",
		"CFBundleExecutable": "Demo",
	}
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "Info.plist"), data, 0644); err != nil {
		t.Fatal(err)
	}

	frameworkInfo := map[string]interface{}{
		"CFBundleIdentifier": "com.demo.app.framework.Core",
	}
	data, err = plist.MarshalIndent(frameworkInfo, plist.XMLFormat, "\t")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "Frameworks", "Core.framework", "Info.plist"), data, 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(appDir, "Demo"), []byte("binary"), 0755); err != nil {
		t.Fatal(err)
	}

	return root
}

func TestRepackAndExtractRoundTrip(t *testing.T) {
	root := buildExtractedTree(t)
	before, err := CollectManifests(root)
	if err != nil {
		t.Fatal(err)
	}

	ipaPath := filepath.Join(t.TempDir(), "out.ipa")
	if err := RepackIPA(root, ipaPath); err != nil {
		t.Fatalf("repack failed: %v", err)
	}

	extracted, err := ExtractIPA(ipaPath)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	defer os.RemoveAll(extracted)

	after, err := CollectManifests(extracted)
	if err != nil {
		t.Fatal(err)
	}

	if len(before) != len(after) {
		t.Fatalf("manifest count changed across round trip: %d != %d", len(before), len(after))
	}
	for i := range before {
		if before[i].BundlePath != after[i].BundlePath {
			t.Errorf("bundle path changed: %s != %s", before[i].BundlePath, after[i].BundlePath)
		}
		if before[i].BundleIdentifier != after[i].BundleIdentifier {
			t.Errorf("identifier changed: %s != %s", before[i].BundleIdentifier, after[i].BundleIdentifier)
		}
		if !reflect.DeepEqual(before[i].info, after[i].info) {
			t.Errorf("plist content changed for %s", before[i].Path)
		}
	}
}

func TestRepackUsesDeflateAndForwardSlashes(t *testing.T) {
	root := buildExtractedTree(t)
	ipaPath := filepath.Join(t.TempDir(), "out.ipa")
	if err := RepackIPA(root, ipaPath); err != nil {
		t.Fatal(err)
	}

	r, err := zip.OpenReader(ipaPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	found := false
	for _, f := range r.File {
		if f.Name == "Payload/Demo.app/Info.plist" {
			found = true
			if f.Method != zip.Deflate {
				t.Errorf("expected Deflate for %s, got %d", f.Name, f.Method)
			}
		}
	}
	if !found {
		t.Error("Payload/Demo.app/Info.plist missing from archive")
	}
}

func TestRepackRejectsTreeWithoutPayload(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ipaPath := filepath.Join(t.TempDir(), "out.ipa")
	err := RepackIPA(root, ipaPath)
	if err == nil {
		t.Fatal("expected error for tree without Payload/")
	}
	if !errors.Is(err, ErrRepack) {
		t.Errorf("expected ErrRepack, got %v", err)
	}
	if _, statErr := os.Stat(ipaPath); !os.IsNotExist(statErr) {
		t.Error("partial output should have been removed")
	}
}

func TestFindAppBundle(t *testing.T) {
	root := buildExtractedTree(t)

	appPath, err := FindAppBundle(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(appPath) != "Demo.app" {
		t.Errorf("expected Demo.app, got %s", appPath)
	}
}

func TestFindAppBundleMissing(t *testing.T) {
	if _, err := FindAppBundle(t.TempDir()); err == nil {
		t.Error("expected error when Payload is missing")
	}
}

func TestReadBundleIdentifier(t *testing.T) {
	root := buildExtractedTree(t)

	id, err := ReadBundleIdentifier(filepath.Join(root, "Payload", "Demo.app"))
	if err != nil {
		t.Fatal(err)
	}
	if id != "com.demo.app" {
		t.Errorf("expected com.demo.app, got %s", id)
	}
}

func TestExtractRejectsZipSlip(t *testing.T) {
	ipaPath := filepath.Join(t.TempDir(), "evil.ipa")
	out, err := os.Create(ipaPath)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(out)
	entry, err := w.Create("../escape.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write([]byte("evil")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := ExtractIPA(ipaPath); err == nil {
		t.Error("expected extraction to reject path traversal entry")
	}
}
