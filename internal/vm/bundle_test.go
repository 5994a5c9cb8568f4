package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.luma", `let double = fn(n) do n * 2 end
double(21)`)

	bundle, err := CompileBundle(entry, nil)
	if err != nil {
		t.Fatalf("compile bundle: %v", err)
	}
	if bundle.ID == "" {
		t.Fatal("bundle has no id")
	}

	data, err := bundle.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !bytes.HasPrefix(data, bundleMagic[:]) {
		t.Fatalf("bundle does not start with magic: % x", data[:8])
	}

	decoded, err := DeserializeBundle(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if decoded.ID != bundle.ID {
		t.Fatalf("id changed across roundtrip: %s != %s", decoded.ID, bundle.ID)
	}

	machine := New(Options{Out: &bytes.Buffer{}})
	result, err := machine.RunBundle(decoded)
	if err != nil {
		t.Fatalf("run bundle: %v", err)
	}
	wantNumber(t, result, 42)
}

func TestBundleRoundTripPreservesClosures(t *testing.T) {
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.luma", `let counter = fn() do
	var n = 0
	fn() do
		n = n + 1
		n
	end
end
let tick = counter()
tick()
tick()`)

	bundle, err := CompileBundle(entry, nil)
	if err != nil {
		t.Fatalf("compile bundle: %v", err)
	}
	data, err := bundle.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	decoded, err := DeserializeBundle(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	machine := New(Options{Out: &bytes.Buffer{}})
	result, err := machine.RunBundle(decoded)
	if err != nil {
		t.Fatalf("run bundle: %v", err)
	}
	wantNumber(t, result, 2)
}

func TestBundleCollectsStaticImports(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "util.luma", `{ inc: fn(n) do n + 1 end }`)
	writeScript(t, dir, "mid.luma", `let util = import("util")
{ bump: util.inc }`)
	entry := writeScript(t, dir, "main.luma", `let mid = import("mid")
mid.bump(41)`)

	bundle, err := CompileBundle(entry, nil)
	if err != nil {
		t.Fatalf("compile bundle: %v", err)
	}
	if len(bundle.Modules) != 2 {
		t.Fatalf("expected 2 bundled modules, got %d", len(bundle.Modules))
	}

	data, err := bundle.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	decoded, err := DeserializeBundle(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	// Run from a different working directory: the preloaded modules must
	// satisfy the imports without touching the original files.
	for canon := range decoded.Modules {
		if err := os.Remove(canon); err != nil {
			t.Fatalf("remove %s: %v", canon, err)
		}
	}
	machine := New(Options{Out: &bytes.Buffer{}})
	result, err := machine.RunBundle(decoded)
	if err != nil {
		t.Fatalf("run bundle: %v", err)
	}
	wantNumber(t, result, 42)
}

func TestBundleRejectsBadMagic(t *testing.T) {
	_, err := DeserializeBundle([]byte("NOPE\x01rest"))
	if err == nil || !strings.Contains(err.Error(), "bad magic") {
		t.Fatalf("expected bad magic error, got %v", err)
	}
}

func TestBundleRejectsUnknownVersion(t *testing.T) {
	data := append([]byte{}, bundleMagic[:]...)
	data = append(data, 0x7F)
	_, err := DeserializeBundle(data)
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestBundleCompileErrorSurfaces(t *testing.T) {
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.luma", `break`)

	_, err := CompileBundle(entry, nil)
	if err == nil {
		t.Fatal("expected compile error from bundling")
	}
}
