package photodir

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/kailas-cloud/memoir/internal/domain"
)

func TestList(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.txt", "a.png", "C.JPG"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(root, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := New(root).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(names, []string{"C.JPG", "a.png", "b.txt"}) {
		t.Errorf("names = %v", names)
	}
}

func TestList_MissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestImportAndOpen(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "photos"))
	payload := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}

	path, err := d.Import(context.Background(), "a.png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if filepath.Base(path) != "a.png" {
		t.Errorf("path = %s", path)
	}

	rc, err := d.Open("a.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("bytes = %v", got)
	}

	names, err := d.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"a.png"}) {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestImport_CanceledContext(t *testing.T) {
	d := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Import(ctx, "a.png", bytes.NewReader([]byte("x"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := d.Open("a.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("partial import visible: %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := New(t.TempDir()).Open("gone.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"a.png", "IMG_0001.JPG", "x y.jpeg"}
	for _, n := range valid {
		if err := ValidateName(n); err != nil {
			t.Errorf("ValidateName(%q) = %v", n, err)
		}
	}
	invalid := []string{"", ".", "..", "../a.png", "dir/a.png", `dir\a.png`, ".hidden.png", "notes.txt"}
	for _, n := range invalid {
		if err := ValidateName(n); !errors.Is(err, domain.ErrInvalidRecord) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidRecord", n, err)
		}
	}
}
