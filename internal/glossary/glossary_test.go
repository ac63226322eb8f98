package glossary

import (
	"reflect"
	"strings"
	"testing"
)

func TestFormat_Empty(t *testing.T) {
	if got := New("doc").Format(); got != EmptyText {
		t.Errorf("Format() = %q, want %q", got, EmptyText)
	}
}

func TestFormat_OmitsEmptyCategories(t *testing.T) {
	g := New("doc")
	g.reconcile(Characters, Entry{Source: "김민수", Target: "金敏秀", Note: "主角", Aliases: []string{"민수"}})
	g.reconcile(Characters, Entry{Source: "박지현"})
	g.reconcile(CulturalExpressions, Entry{Source: "눈치", Target: "眼力见儿"})

	want := strings.Join([]string{
		"## 术语库",
		"",
		"### 人物",
		"- 김민수 → 金敏秀 [别名: 민수] (主角)",
		"- 박지현",
		"",
		"### 文化表达",
		"- 눈치 → 眼力见儿",
	}, "\n")
	if got := g.Format(); got != want {
		t.Errorf("Format():\n%s\nwant:\n%s", got, want)
	}
}

func TestReconcile_FirstWriteWins(t *testing.T) {
	a := Entry{Source: "김민수", Target: "金敏秀"}
	b := Entry{Source: "김민수", Target: "金民洙", Note: "主角"}

	ab := New("doc")
	ab.reconcile(Characters, a)
	ab.reconcile(Characters, b)

	ba := New("doc")
	ba.reconcile(Characters, b)
	ba.reconcile(Characters, a)

	gotAB, _ := ab.Lookup(Characters, "김민수")
	gotBA, _ := ba.Lookup(Characters, "김민수")

	if gotAB.Target != "金敏秀" {
		t.Errorf("A then B: target = %q, want A's value", gotAB.Target)
	}
	if gotBA.Target != "金民洙" {
		t.Errorf("B then A: target = %q, want B's value", gotBA.Target)
	}
	if gotAB.Note != "主角" {
		t.Errorf("empty note should be filled by a later suggestion, got %q", gotAB.Note)
	}
	if gotAB.Target == gotBA.Target {
		t.Error("merge order must decide the surviving target")
	}
}

func TestReconcile_AddsAliasesWithoutDuplicates(t *testing.T) {
	g := New("doc")
	added, _ := g.reconcile(Characters, Entry{Source: "김민수", Aliases: []string{"민수"}})
	if !added {
		t.Fatal("expected first entry to be added")
	}
	added, changed := g.reconcile(Characters, Entry{Source: " 김민수 ", Aliases: []string{"민수", "김 선생", "김민수"}})
	if added || !changed {
		t.Fatalf("expected an in-place update, got added=%v changed=%v", added, changed)
	}

	e, _ := g.Lookup(Characters, "김민수")
	if want := []string{"민수", "김 선생"}; !reflect.DeepEqual(e.Aliases, want) {
		t.Errorf("aliases = %q, want %q", e.Aliases, want)
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", g.Len())
	}
}

func TestReconcile_NoChange(t *testing.T) {
	g := New("doc")
	g.reconcile(ProperNouns, Entry{Source: "응급실", Target: "急诊室", Note: "n"})
	if _, changed := g.reconcile(ProperNouns, Entry{Source: "응급실", Target: "急救室"}); changed {
		t.Error("a populated entry must not change")
	}
	if _, changed := g.reconcile(ProperNouns, Entry{Source: "  "}); changed {
		t.Error("blank source must be ignored")
	}
}

func TestReconcile_DropsAliasesOutsideCharacters(t *testing.T) {
	g := New("doc")
	g.reconcile(ProperNouns, Entry{Source: "한강", Aliases: []string{"x"}})
	e, _ := g.Lookup(ProperNouns, "한강")
	if len(e.Aliases) != 0 {
		t.Errorf("unexpected aliases %q", e.Aliases)
	}
}

func TestStats(t *testing.T) {
	g := New("doc")
	g.reconcile(Characters, Entry{Source: "a", Target: "A"})
	g.reconcile(Characters, Entry{Source: "b"})
	g.reconcile(ProperNouns, Entry{Source: "c", Target: "C"})

	stats := g.Stats()
	if len(stats) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(stats))
	}
	if s := stats[0]; s.Total != 2 || s.Translated != 1 || s.Untranslated != 1 {
		t.Errorf("unexpected character stats %+v", s)
	}
	if s := stats[2]; s.Total != 0 {
		t.Errorf("unexpected expression stats %+v", s)
	}
}

func TestRemove(t *testing.T) {
	g := New("doc")
	g.reconcile(ProperNouns, Entry{Source: "a"})
	g.reconcile(ProperNouns, Entry{Source: "b"})
	g.reconcile(ProperNouns, Entry{Source: "c"})

	if !g.remove(ProperNouns, "b") {
		t.Fatal("expected removal")
	}
	if g.remove(ProperNouns, "b") {
		t.Error("second removal should report false")
	}
	if e, ok := g.Lookup(ProperNouns, "c"); !ok || e.Source != "c" {
		t.Error("index must be rebuilt after removal")
	}
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"characters": Characters, "nouns": ProperNouns, "文化表达": CulturalExpressions,
	} {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Errorf("ParseCategory(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseCategory("places"); err == nil {
		t.Error("expected error for unknown category")
	}
}
