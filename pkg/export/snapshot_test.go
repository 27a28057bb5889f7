package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/aopview/pkg/model"
)

func snapshotElements() []model.Element {
	return []model.Element{
		{Group: model.GroupNodes, Data: model.Data{ID: "chem1", Label: "Aflatoxin B1"}, Classes: "chemical"},
		{Group: model.GroupNodes, Data: model.Data{ID: "mie1", Label: "DNA adduct formation", Curie: "aop.events:875"}, Classes: "mie"},
		{Group: model.GroupNodes, Data: model.Data{ID: "ke1", Label: "Mutation induction"}, Classes: "ke"},
		{Group: model.GroupNodes, Data: model.Data{ID: "ao1", Label: "Liver cancer"}, Classes: "ao"},
		{Group: model.GroupEdges, Data: model.Data{ID: "e1", Source: "chem1", Target: "mie1", Type: "interaction"}},
		{Group: model.GroupEdges, Data: model.Data{ID: "e2", Source: "mie1", Target: "ke1", Type: "ker"}},
		{Group: model.GroupEdges, Data: model.Data{ID: "e3", Source: "ke1", Target: "ao1", Type: "ker"}},
	}
}

func TestSaveSnapshot_SVGAndPNG(t *testing.T) {
	tmp := t.TempDir()
	cases := []struct {
		name string
		file string
	}{
		{"svg", "network.svg"},
		{"png", "network.png"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(tmp, tc.file)
			err := SaveSnapshot(SnapshotOptions{
				Path:     out,
				Title:    "Aflatoxin pathway",
				Elements: snapshotElements(),
			})
			if err != nil {
				t.Fatalf("SaveSnapshot error: %v", err)
			}
			info, err := os.Stat(out)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("output file is empty")
			}
		})
	}
}

func TestSaveSnapshot_InvalidFormat(t *testing.T) {
	err := SaveSnapshot(SnapshotOptions{
		Path:     "network.txt",
		Format:   "txt",
		Elements: snapshotElements(),
	})
	if err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestSaveSnapshot_EmptyElements(t *testing.T) {
	err := SaveSnapshot(SnapshotOptions{Path: "network.svg"})
	if err == nil {
		t.Fatalf("expected error for empty element set")
	}
}

func TestSnapshotSVGContainsNodeLabels(t *testing.T) {
	sc := buildScene(SnapshotOptions{Title: "Test", Elements: snapshotElements()})

	var buf bytes.Buffer
	if err := renderSVGToWriter(&buf, sc); err != nil {
		t.Fatalf("renderSVGToWriter: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Aflatoxin B1", "DNA adduct formation", "aop.events:875", "nodes: 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG output missing %q", want)
		}
	}
}

func TestBuildSceneSkipsEdgesToHiddenNodes(t *testing.T) {
	els := []model.Element{
		{Group: model.GroupNodes, Data: model.Data{ID: "mie1"}, Classes: "mie"},
		{Group: model.GroupEdges, Data: model.Data{ID: "e1", Source: "mie1", Target: "ghost"}},
	}
	sc := buildScene(SnapshotOptions{Elements: els})
	if len(sc.Edges) != 0 {
		t.Errorf("expected edge to hidden endpoint to be dropped, got %d edges", len(sc.Edges))
	}
	if len(sc.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(sc.Nodes))
	}
}
