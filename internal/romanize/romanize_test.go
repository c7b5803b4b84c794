package romanize

import "testing"

func TestConvert(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"안녕", "annyeong"},
		{"한국", "hangug"},
		{"사랑", "sarang"},
		{"", ""},
		{"hello", "hello"},
		{"안녕 world!", "annyeong world!"},
		{"123 테스트", "123 teseuteu"},
	}
	for _, tc := range cases {
		if got := Convert(tc.in); got != tc.want {
			t.Errorf("Convert(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConvertLeavesNonHangulRunesAlone(t *testing.T) {
	in := "émoji 🎉 and kana かな"
	if got := Convert(in); got != in {
		t.Errorf("Convert(%q) = %q, want input unchanged", in, got)
	}
}
