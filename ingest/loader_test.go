package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileLoaderPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("  remember the milk\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := NewFileLoader().Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	d := docs[0]
	if d.Title != "notes.txt" || d.Source != path {
		t.Errorf("Title = %q, Source = %q", d.Title, d.Source)
	}
	if len(d.Segments) != 1 {
		t.Fatalf("len(Segments) = %d, want 1", len(d.Segments))
	}
	if d.Segments[0].Text != "remember the milk" {
		t.Errorf("Text = %q, want trimmed content", d.Segments[0].Text)
	}
	if d.Segments[0].Metadata["file_name"] != "notes.txt" {
		t.Errorf("file_name = %q, want notes.txt", d.Segments[0].Metadata["file_name"])
	}
	if d.ID == "" || d.CreatedAt == 0 {
		t.Error("ID and CreatedAt should be set")
	}
}

func TestFileLoaderUnknownExtensionFallsBackToText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.log")
	if err := os.WriteFile(path, []byte("line one"), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := NewFileLoader().Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if docs[0].Segments[0].Text != "line one" {
		t.Errorf("Text = %q", docs[0].Segments[0].Text)
	}
}

func TestFileLoaderMissingFile(t *testing.T) {
	_, err := NewFileLoader().Load(filepath.Join(t.TempDir(), "absent.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFileLoaderMarkdownSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	src := "# Intro\n\nWelcome text.\n\n## Setup\n\nInstall steps.\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := NewFileLoader().Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	segs := docs[0].Segments
	if len(segs) < 2 {
		t.Fatalf("len(Segments) = %d, want one per heading", len(segs))
	}
	if segs[0].Metadata["section"] != "Intro" {
		t.Errorf("segment 0 section = %q, want Intro", segs[0].Metadata["section"])
	}
	if segs[1].Metadata["section"] != "Setup" {
		t.Errorf("segment 1 section = %q, want Setup", segs[1].Metadata["section"])
	}
}
