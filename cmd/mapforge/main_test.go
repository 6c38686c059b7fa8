package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lawnchairsociety/mapforge/internal/assembler"
	"github.com/lawnchairsociety/mapforge/internal/wang"
)

// runCLI executes the root command with a config rooted in a temp dir and
// returns its output.
func runCLI(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	configPath := filepath.Join(root, "mapforge.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := fmt.Sprintf(`assets:
  tilesets_dir: %s
  maps_dir: %s
journal:
  enabled: false
logging:
  level: ERROR
`, filepath.Join(root, "tilesets"), filepath.Join(root, "maps"))
		if err := os.WriteFile(configPath, []byte(cfg), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath, "--env-file", filepath.Join(root, "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeTileset(t *testing.T, dir, id string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < wang.TileCount; i++ {
		img := imaging.New(8, 8, color.NRGBA{uint8(i * 16), 10, 10, 255})
		if err := imaging.Save(img, filepath.Join(dir, wang.TileFileName(i))); err != nil {
			t.Fatal(err)
		}
	}
	md := &wang.Metadata{TilesetID: id, TileSize: 8, TileCount: wang.TileCount, SavedAt: time.Now()}
	data, err := md.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, wang.MetadataFile), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		input   string
		want    image.Point
		wantErr bool
	}{
		{"0,0", image.Pt(0, 0), false},
		{"-16, 32", image.Pt(-16, 32), false},
		{"5", image.Point{}, true},
		{"a,b", image.Point{}, true},
	}
	for _, tt := range tests {
		got, err := parsePoint(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePoint(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePoint(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseRect(t *testing.T) {
	got, err := parseRect("4,8,16,2")
	if err != nil {
		t.Fatalf("parseRect failed: %v", err)
	}
	if got != image.Rect(4, 8, 20, 10) {
		t.Errorf("parseRect = %v", got)
	}
	for _, bad := range []string{"1,2,3", "1,2,0,4", "x,2,3,4"} {
		if _, err := parseRect(bad); err == nil {
			t.Errorf("parseRect(%q) accepted", bad)
		}
	}
}

func TestParsePlacement(t *testing.T) {
	path, at, err := parsePlacement("maps/a.png@-8,4")
	if err != nil || path != "maps/a.png" || at != image.Pt(-8, 4) {
		t.Errorf("parsePlacement = %q, %v, %v", path, at, err)
	}
	path, at, err = parsePlacement("b.png")
	if err != nil || path != "b.png" || at != (image.Point{}) {
		t.Errorf("parsePlacement without offset = %q, %v, %v", path, at, err)
	}
	if _, _, err := parsePlacement("@1,2"); err == nil {
		t.Error("parsePlacement accepted empty path")
	}
}

func TestLoadMapFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "grid.yaml")
	os.WriteFile(good, []byte("tileset: abc\ntile_size: 32\ngrid:\n  - [0, 1]\n  - [1, 0]\n"), 0644)

	mf, err := loadMapFile(good)
	if err != nil {
		t.Fatalf("loadMapFile failed: %v", err)
	}
	if mf.Tileset != "abc" || mf.TileSize != 32 || len(mf.grid()) != 2 || mf.grid()[0][1] != 1 {
		t.Errorf("loaded %+v", mf)
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	os.WriteFile(unknown, []byte("grdi:\n  - [0, 1]\n"), 0644)
	if _, err := loadMapFile(unknown); err == nil {
		t.Error("loadMapFile accepted an unknown key")
	}

	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, []byte("tileset: abc\n"), 0644)
	if _, err := loadMapFile(empty); err == nil {
		t.Error("loadMapFile accepted a file with no grid or layout")
	}
}

func TestRenderPreviewCheckerboard(t *testing.T) {
	grid := assembler.Grid{{0, 1, 0}, {1, 0, 1}, {0, 1, 0}}
	var buf bytes.Buffer
	if err := renderPreview(&buf, grid); err != nil {
		t.Fatalf("renderPreview failed: %v", err)
	}
	if !strings.Contains(buf.String(), "69\n96\n") {
		t.Errorf("preview = %q", buf.String())
	}

	if err := renderPreview(&buf, assembler.Grid{{0, 1}}); !errors.Is(err, assembler.ErrInvalidGrid) {
		t.Errorf("one row: error = %v, want ErrInvalidGrid", err)
	}
	if err := renderPreview(&buf, assembler.Grid{{0, 2}, {0, 0}}); !errors.Is(err, wang.ErrInvalidCornerValue) {
		t.Errorf("bad corner: error = %v, want ErrInvalidCornerValue", err)
	}
}

func TestMapPreviewParsesPatternNames(t *testing.T) {
	root := t.TempDir()
	for _, p := range assembler.Patterns() {
		out, err := runCLI(t, root, "map", "preview", "-W", "3", "-H", "2", "-p", string(p), "--seed", "7")
		if err != nil {
			t.Errorf("pattern %s: %v", p, err)
			continue
		}
		if !strings.Contains(out, "3x2 tiles") {
			t.Errorf("pattern %s output = %q", p, out)
		}
	}

	if _, err := runCLI(t, root, "map", "preview", "-p", "spiral"); !errors.Is(err, assembler.ErrUnknownPattern) {
		t.Errorf("unknown pattern: error = %v, want ErrUnknownPattern", err)
	}
}

func TestTilesetListCommand(t *testing.T) {
	root := t.TempDir()
	out, err := runCLI(t, root, "tileset", "list")
	if err != nil {
		t.Fatalf("tileset list failed: %v", err)
	}
	if !strings.Contains(out, "No tilesets") {
		t.Errorf("empty list output = %q", out)
	}

	writeTileset(t, filepath.Join(root, "tilesets", "abcd1234"), "abcd1234-full-id")
	out, err = runCLI(t, root, "tileset", "list")
	if err != nil {
		t.Fatalf("tileset list failed: %v", err)
	}
	if !strings.Contains(out, "abcd1234-full-id") {
		t.Errorf("list output = %q", out)
	}
}

func TestTilesetCreateNeedsTwoTerrains(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "tileset", "create", "ocean"); err == nil {
		t.Error("tileset create accepted a single terrain")
	}
}

func TestMapAssembleAndStitch(t *testing.T) {
	root := t.TempDir()
	writeTileset(t, filepath.Join(root, "tilesets", "abcd1234"), "abcd1234-full-id")

	out, err := runCLI(t, root, "map", "assemble", "abcd1234-full-id", "-W", "3", "-H", "2", "-p", "solid_upper", "--out", "solid.png", "--scale", "2")
	if err != nil {
		t.Fatalf("map assemble failed: %v\n%s", err, out)
	}
	mapPath := filepath.Join(root, "maps", "solid.png")
	img, err := imaging.Open(mapPath)
	if err != nil {
		t.Fatalf("assembled map missing: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 48 || b.Dy() != 32 {
		t.Errorf("assembled map = %dx%d, want 48x32", b.Dx(), b.Dy())
	}

	out, err = runCLI(t, root, "map", "stitch", mapPath+"@0,0", mapPath+"@-48,0", "--out", "wide.png")
	if err != nil {
		t.Fatalf("map stitch failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "96x32") {
		t.Errorf("stitch output = %q", out)
	}

	if _, err := runCLI(t, root, "map", "assemble", "missing", "-p", "random"); err == nil {
		t.Error("map assemble accepted an unknown tileset")
	}
}

func TestMapTerrainCommand(t *testing.T) {
	root := t.TempDir()
	writeTileset(t, filepath.Join(root, "tilesets", "feed0000"), "feed0000")
	gridPath := filepath.Join(root, "grid.yaml")
	os.WriteFile(gridPath, []byte("tileset: feed0000\ngrid:\n  - [0, 0, 1]\n  - [0, 1, 1]\n"), 0644)

	out, err := runCLI(t, root, "map", "terrain", "--grid", gridPath)
	if err != nil {
		t.Fatalf("map terrain failed: %v\n%s", err, out)
	}
	img, err := imaging.Open(filepath.Join(root, "maps", "terrain.png"))
	if err != nil {
		t.Fatalf("terrain map missing: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("terrain map = %dx%d, want 16x8", b.Dx(), b.Dy())
	}
}
