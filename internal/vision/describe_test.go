package vision

import "testing"

func TestCleanDescription(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"原样保留", "Web browser article reading", "Web browser article reading"},
		{"去首尾空白", "  Code editor Python file \n", "Code editor Python file"},
		{"去双引号", `"Settings screen preferences"`, "Settings screen preferences"},
		{"去单引号", "'Email inbox messages'", "Email inbox messages"},
		{"剥开场白", "This screenshot shows a terminal window", "a terminal window"},
		{"开场白大小写不敏感", "the image shows Safari browser tabs", "Safari browser tabs"},
		{"Screenshot of 前缀", "Screenshot of desktop with folders", "desktop with folders"},
		{"叠加开场白逐层剥", "This screenshot shows Image of a login form", "a login form"},
		{"七词截成五词", "one two three four five six seven", "one two three four five"},
		{"六词不截", "one two three four five six", "one two three four five six"},
		{"空串", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanDescription(tc.in, 5)
			if got != tc.want {
				t.Fatalf("期望 %q，实际 %q", tc.want, got)
			}
		})
	}
}

func TestCleanDescription_TargetWordsRespected(t *testing.T) {
	got := CleanDescription("one two three four five six", 3)
	if got != "one two three" {
		t.Fatalf("期望截成三个词，实际 %q", got)
	}
	// 恰好 targetWords+1 个词时保留原样
	got = CleanDescription("one two three four", 3)
	if got != "one two three four" {
		t.Fatalf("期望保留四个词，实际 %q", got)
	}
}

func TestCleanDescription_ZeroTargetFallsBack(t *testing.T) {
	got := CleanDescription("one two three four five six seven", 0)
	if got != "one two three four five" {
		t.Fatalf("期望回落到五个词，实际 %q", got)
	}
}

func TestCleanDescription_PrefixOnlyAtStart(t *testing.T) {
	got := CleanDescription("Editing the image of a cat", 5)
	if got != "Editing the image of a" {
		t.Fatalf("句中出现的 image of 不应剥除，实际 %q", got)
	}
}
