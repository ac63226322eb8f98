package glossary

import (
	"reflect"
	"testing"
)

const sampleSuggestions = `好的，以下是术语更新：

### 更新人物
- 김민수 → 金敏秀 (别名: 민수, 민수 씨): 主角，神经外科医生
- 박지현 (别名: 지현): 护士长
- 이도윤 → 李道允: 住院医师
- 최 교수: 科室主任
这一行没有列表符号，应忽略

### 专有名词更新
- 서울대학교병원 → 首尔大学医院: 故事主要舞台
- 응급실 -> 急诊室
- 무명 병원

### 更新文化表达
- 无
`

func TestParse_Characters(t *testing.T) {
	got := Parse(sampleSuggestions, Characters)
	want := []Entry{
		{Source: "김민수", Target: "金敏秀", Note: "主角，神经外科医生", Aliases: []string{"민수", "민수 씨"}},
		{Source: "박지현", Note: "护士长", Aliases: []string{"지현"}},
		{Source: "이도윤", Target: "李道允", Note: "住院医师"},
		{Source: "최 교수", Note: "科室主任"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse characters:\n got  %#v\n want %#v", got, want)
	}
}

func TestParse_ProperNouns(t *testing.T) {
	got := Parse(sampleSuggestions, ProperNouns)
	want := []Entry{
		{Source: "서울대학교병원", Target: "首尔大学医院", Note: "故事主要舞台"},
		{Source: "응급실", Target: "急诊室"},
		{Source: "무명 병원"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse nouns:\n got  %#v\n want %#v", got, want)
	}
}

func TestParse_PlaceholderSectionIsEmpty(t *testing.T) {
	if got := Parse(sampleSuggestions, CulturalExpressions); len(got) != 0 {
		t.Errorf("expected no expressions, got %#v", got)
	}
}

func TestParse_AliasesOnlyForCharacters(t *testing.T) {
	raw := "### 更新专有名词\n- 한강 → 汉江 (别名: 한강변): 河流\n"
	got := Parse(raw, ProperNouns)
	want := []Entry{{Source: "한강", Target: "汉江", Note: "河流"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestParse_HeaderVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"h3 first spelling", "### 更新人物\n- 김민수 → 金敏秀\n"},
		{"h3 second spelling", "### 人物更新\n- 김민수 → 金敏秀\n"},
		{"h2 with colon", "## 人物更新：\n- 김민수 → 金敏秀\n"},
		{"bold header", "**更新人物**\n* 김민수 → 金敏秀\n"},
		{"full-width punctuation", "### 更新人物\n- 김민수 → 金敏秀：主角\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, Characters)
			if len(got) != 1 || got[0].Source != "김민수" || got[0].Target != "金敏秀" {
				t.Errorf("unexpected result %#v", got)
			}
		})
	}
}

func TestParse_SectionBoundedByNextHeader(t *testing.T) {
	raw := "### 更新人物\n- 김민수 → 金敏秀\n### 更新文化表达\n- 눈치 → 眼力见儿: 察言观色\n"
	if got := Parse(raw, Characters); len(got) != 1 {
		t.Errorf("expected 1 character, got %#v", got)
	}
	got := Parse(raw, CulturalExpressions)
	if len(got) != 1 || got[0].Source != "눈치" || got[0].Note != "察言观色" {
		t.Errorf("unexpected expressions %#v", got)
	}
}

func TestParse_RemarkAfterTargetGoesToNote(t *testing.T) {
	tests := []struct {
		line string
		want Entry
	}{
		{"- 김민수 → 金敏洙 (主角): 男主角", Entry{Source: "김민수", Target: "金敏洙", Note: "主角; 男主角"}},
		{"- 김민수 → 金敏洙（主角）", Entry{Source: "김민수", Target: "金敏洙", Note: "主角"}},
	}
	for _, tt := range tests {
		got := Parse("### 更新人物\n"+tt.line+"\n", Characters)
		if len(got) != 1 || !reflect.DeepEqual(got[0], tt.want) {
			t.Errorf("%s: got %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestParse_NoSections(t *testing.T) {
	for _, raw := range []string{"", "没有新的术语。", "- 김민수 → 金敏秀"} {
		if got := ParseAll(raw); len(got) != 0 {
			t.Errorf("ParseAll(%q) = %#v, want nothing", raw, got)
		}
	}
}

func TestSplitAliases(t *testing.T) {
	got := splitAliases(" 민수， 민수 씨、**김 선생** ,")
	want := []string{"민수", "민수 씨", "김 선생"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}
