package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"tripscout/internal/poi"
)

func TestSaveJSONWritesMetadataAndState(t *testing.T) {
	st := NewState("persona", "Seoul", "2026-01-06", "2026-01-07")
	st.Target = 10
	st.Keywords = []string{"seoul food"}
	st.POIData["p1"] = &poi.POI{ID: "p1", Name: "Spot", Category: poi.CategoryCafe, RawText: "x", Source: poi.SourceWebSearch}
	st.FinalPOIs = []*poi.POI{st.POIData["p1"]}

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	if !st.SaveJSON(path) {
		t.Fatal("save should succeed and create parent directories")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("state dump is not valid json: %v", err)
	}

	meta, ok := decoded["metadata"].(map[string]any)
	if !ok || meta["generated_at"] == "" {
		t.Fatalf("missing generation metadata: %v", decoded["metadata"])
	}
	if decoded["travel_destination"] != "Seoul" {
		t.Fatalf("state fields must serialize: %v", decoded["travel_destination"])
	}
	if _, ok := decoded["poi_data_map"].(map[string]any); !ok {
		t.Fatalf("poi data map must serialize")
	}
	if _, ok := decoded["stats"].(map[string]any); !ok {
		t.Fatalf("stats must serialize")
	}
}

func TestSaveJSONFailureIsNonFatal(t *testing.T) {
	st := NewState("p", "Seoul", "", "")
	// A directory path cannot be written as a file.
	dir := t.TempDir()
	if st.SaveJSON(dir) {
		t.Fatal("expected save failure when the target is a directory")
	}
}
