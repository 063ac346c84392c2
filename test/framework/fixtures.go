package framework

import (
	"os"
	"path/filepath"
)

// WritePackage materializes fixture under dataDir in the layout
// pkg/jsengine.LoadFromPackage reads: <dataDir>/<ID>/<Version>/embassy.js.
// Returns dataDir for convenience in call chains.
func WritePackage(t TestingT, dataDir string, fixture PackageFixture) string {
	t.Helper()

	dir := filepath.Join(dataDir, fixture.ID, fixture.Version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating package dir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "embassy.js"), []byte(fixture.Source), 0644); err != nil {
		t.Fatalf("writing embassy.js: %v", err)
	}
	return dataDir
}

// WriteVolumeFile writes content at subpath under a volume's absolute root,
// creating parent directories as needed — used to seed fixture state a
// procedure's read_file/read_dir ops exercise.
func WriteVolumeFile(t TestingT, volumeRoot, subpath, content string) {
	t.Helper()

	full := filepath.Join(volumeRoot, subpath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("creating dir for %s: %v", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", full, err)
	}
}
