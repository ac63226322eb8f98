package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_LoadEmptyCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)

	g, err := s.Load("novel")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("expected empty glossary, got %d entries", g.Len())
	}
	for _, c := range Categories {
		data, err := os.ReadFile(filepath.Join(dir, "novel", c.FileName()))
		if err != nil {
			t.Fatalf("expected %s to be written: %v", c.FileName(), err)
		}
		if string(data) != "[]" {
			t.Errorf("%s = %q, want []", c.FileName(), data)
		}
	}
}

func TestStore_LoadSeedsFromDefaults(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "character.json"), []map[string]any{
		{"name": "김민수", "alias": []string{"민수"}, "description": "主角"},
	})
	s := NewStore(dir, nil)

	g, err := s.Load("novel")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	e, ok := g.Lookup(Characters, "김민수")
	if !ok || e.Note != "主角" || len(e.Aliases) != 1 {
		t.Fatalf("unexpected seeded entry %+v (found=%v)", e, ok)
	}

	// The seeded copy is document-local: changing the default afterwards
	// does not affect the document.
	writeJSON(t, filepath.Join(dir, "character.json"), []string{"다른사람"})
	g2, err := s.Load("novel")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g2.Lookup(Characters, "다른사람"); ok {
		t.Error("document glossary should not be reseeded once it exists")
	}
}

func TestStore_LoadMigratesLegacyFields(t *testing.T) {
	dir := t.TempDir()
	docDir := filepath.Join(dir, "novel")
	writeJSON(t, filepath.Join(docDir, "character.json"), []any{
		map[string]any{"korean_name": "김민수", "chinese_name": "金敏秀", "alias": "민수, 민수 씨", "last_updated": "2024-01-01"},
		"박지현",
	})
	writeJSON(t, filepath.Join(docDir, "proper_nouns.json"), []map[string]any{
		{"original": "응급실", "translated": "急诊室", "description": "医院科室"},
		{"korean_term": "수술실", "chinese_term": "手术室"},
	})
	writeJSON(t, filepath.Join(docDir, "cultural_expressions.json"), map[string]any{
		"눈치": "眼力见儿",
		"정":  map[string]any{"explanation": "人情"},
	})

	g, err := NewStore(dir, nil).Load("novel")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if e, _ := g.Lookup(Characters, "김민수"); e.Target != "金敏秀" || len(e.Aliases) != 2 {
		t.Errorf("unexpected character %+v", e)
	}
	if _, ok := g.Lookup(Characters, "박지현"); !ok {
		t.Error("bare string entry missing")
	}
	if e, _ := g.Lookup(ProperNouns, "응급실"); e.Target != "急诊室" || e.Note != "医院科室" {
		t.Errorf("unexpected noun %+v", e)
	}
	if e, _ := g.Lookup(ProperNouns, "수술실"); e.Target != "手术室" {
		t.Errorf("unexpected noun %+v", e)
	}
	if e, _ := g.Lookup(CulturalExpressions, "정"); e.Note != "人情" {
		t.Errorf("unexpected expression %+v", e)
	}
	if e, _ := g.Lookup(CulturalExpressions, "눈치"); e.Target != "眼力见儿" {
		t.Errorf("unexpected expression %+v", e)
	}
}

func TestStore_LoadMalformedDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "novel", "proper_nouns.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`[{"source": "broken"`), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := NewStore(dir, nil).Load("novel")
	if err != nil {
		t.Fatalf("malformed file must not fail Load: %v", err)
	}
	if len(g.Entries(ProperNouns)) != 0 {
		t.Error("expected empty category")
	}
}

func TestStore_LoadMalformedKeepsOriginalBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "novel", "character.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	original := []byte(`[{"name": "김도훈", "alias": ["도훈"]},`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir, nil)
	g, err := s.Load("novel")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(g.Entries(Characters)) != 0 {
		t.Error("expected empty category")
	}
	if _, err := s.MergeSuggestions(g, "更新人物:\n- 박서연 → 朴瑞妍"); err != nil {
		t.Fatalf("MergeSuggestions failed: %v", err)
	}

	backups, err := filepath.Glob(path + ".corrupt-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected one backup of the malformed file, got %v", backups)
	}
	data, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(original) {
		t.Errorf("backup = %q, want %q", data, original)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected a fresh %s: %v", path, err)
	}
}

func TestStore_MergeSuggestionsPersists(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	g, err := s.Load("novel")
	if err != nil {
		t.Fatal(err)
	}

	counts, err := s.MergeSuggestions(g, sampleSuggestions)
	if err != nil {
		t.Fatalf("MergeSuggestions failed: %v", err)
	}
	if counts.Characters != 4 || counts.ProperNouns != 3 || counts.CulturalExpressions != 0 {
		t.Errorf("unexpected counts %+v", counts)
	}

	again, err := s.MergeSuggestions(g, sampleSuggestions)
	if err != nil {
		t.Fatal(err)
	}
	if again.Total() != 0 {
		t.Errorf("re-merging the same suggestions added %+v", again)
	}

	reloaded, err := NewStore(dir, nil).Load("novel")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 7 {
		t.Errorf("expected 7 persisted entries, got %d", reloaded.Len())
	}
	if e, _ := reloaded.Lookup(Characters, "김민수"); e.Target != "金敏秀" {
		t.Errorf("unexpected persisted character %+v", e)
	}
}

func TestStore_MergeNothingRecognised(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	g, _ := s.Load("novel")

	counts, err := s.MergeSuggestions(g, "本段没有新术语。")
	if err != nil || counts.Total() != 0 {
		t.Errorf("expected zero additions without error, got %+v, %v", counts, err)
	}
}

func TestStore_FailedWriteLeavesGlossaryUnchanged(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	g, err := s.Load("novel")
	if err != nil {
		t.Fatal(err)
	}

	// Replace the document directory with a file so staging fails.
	docDir := s.DocumentDir("novel")
	if err := os.RemoveAll(docDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(docDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.MergeSuggestions(g, sampleSuggestions); err == nil {
		t.Fatal("expected write error")
	}
	if g.Len() != 0 {
		t.Errorf("in-memory glossary changed despite failed write: %d entries", g.Len())
	}
}

func TestStore_AddAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	g, _ := s.Load("novel")

	added, err := s.Add(g, ProperNouns, Entry{Source: "응급실", Target: "急诊室"})
	if err != nil || !added {
		t.Fatalf("Add = %v, %v", added, err)
	}
	added, err = s.Add(g, ProperNouns, Entry{Source: "응급실", Target: "急救室"})
	if err != nil || added {
		t.Fatalf("second Add = %v, %v", added, err)
	}
	removed, err := s.Remove(g, ProperNouns, "응급실")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}

	reloaded, _ := NewStore(dir, nil).Load("novel")
	if reloaded.Len() != 0 {
		t.Errorf("expected empty glossary after removal, got %d", reloaded.Len())
	}
}

func TestStore_ConcurrentMergesAndReads(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	g, err := s.Load("novel")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			raw := fmt.Sprintf("### 更新人物\n- 인물%d → 人物%d\n- 공통 → 共同\n", i, i)
			if _, err := s.MergeSuggestions(g, raw); err != nil {
				t.Errorf("merge %d: %v", i, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			_ = g.Format()
		}()
	}
	wg.Wait()

	if n := len(g.Entries(Characters)); n != 9 {
		t.Errorf("expected 9 characters, got %d", n)
	}
}
