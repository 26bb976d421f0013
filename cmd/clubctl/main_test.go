package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/crypto/bcrypt"

	"clubhouse/api/internal/auth"
)

const testDocument = `{"root":{"type":"root","children":[
	{"type":"heading","tag":"h2","children":[{"type":"text","text":"Opening hours","format":0}]},
	{"type":"paragraph","children":[
		{"type":"text","text":"Open ","format":0},
		{"type":"text","text":"daily","format":1}
	]},
	{"type":"upload","relationTo":"media","value":{"url":"/media/hall.jpg","alt":"Hall","width":800,"height":600}}
]}}`

func testGlobals(stdin string) (*Globals, *bytes.Buffer) {
	var out bytes.Buffer
	return &Globals{LogLevel: "error", LogFormat: "console", stdin: strings.NewReader(stdin), stdout: &out}, &out
}

func TestParseCommands(t *testing.T) {
	tests := [][]string{
		{"render", "doc.json", "--format", "markdown", "--media-base-url", "https://cdn.test"},
		{"token", "--name", "Avery", "--role", "admin", "--ttl", "1h"},
		{"hash-password", "correct horse"},
		{"version"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			var cli CLI
			parser, err := kong.New(&cli, kong.Name("clubctl"))
			if err != nil {
				t.Fatalf("kong.New() error = %v", err)
			}
			if _, err := parser.Parse(args); err != nil {
				t.Fatalf("Parse(%v) error = %v", args, err)
			}
		})
	}
}

func TestRenderFromStdin(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"html", []string{"<h2>Opening hours</h2>", "<strong>daily</strong>", `src="https://cdn.test/media/hall.jpg"`}},
		{"markdown", []string{"## Opening hours", "Open **daily**"}},
		{"text", []string{"Opening hours\nOpen daily\nHall"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			g, out := testGlobals(testDocument)
			cmd := &RenderCmd{Format: tt.format, MediaBaseURL: "https://cdn.test"}
			if err := cmd.Run(g); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Fatalf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestRenderFileToOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "page.json")
	if err := os.WriteFile(in, []byte(testDocument), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	profile := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(profile, []byte("container:\n  class: prose\nhighlight:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	outPath := filepath.Join(dir, "page.html")

	g, _ := testGlobals("")
	cmd := &RenderCmd{File: in, Format: "html", Profile: profile, Output: outPath}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), `<div class="prose">`) {
		t.Fatalf("unexpected output: %s", data)
	}
}

func TestRenderRejectsInvalidJSON(t *testing.T) {
	g, _ := testGlobals(`not json`)
	if err := (&RenderCmd{Format: "html"}).Run(g); err == nil {
		t.Fatalf("expected an error for invalid JSON")
	}
}

func TestTokenCommand(t *testing.T) {
	g, out := testGlobals("")
	cmd := &TokenCmd{UserID: "acc_1", Name: "Avery", Role: "admin", TTL: time.Hour, Secret: "s3cret"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	claims, err := auth.ParseToken([]byte("s3cret"), strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "acc_1" || claims.Role != "admin" || claims.Name != "Avery" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	g, out := testGlobals("correct horse battery\n")
	if err := (&HashPasswordCmd{}).Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")); err != nil {
		t.Fatalf("hash does not match: %v", err)
	}

	g, _ = testGlobals("")
	if err := (&HashPasswordCmd{Password: "short"}).Run(g); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}
