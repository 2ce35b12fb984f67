package monitor

import "testing"

func TestTitleSimilarityIdentical(t *testing.T) {
	got := TitleSimilarity("Morning News Special Broadcast", "Morning News Special Broadcast")
	if got != 1.0 {
		t.Errorf("Expected similarity 1.0 for identical titles, got %f", got)
	}
}

func TestTitleSimilarityCaseAndPunctuation(t *testing.T) {
	got := TitleSimilarity("Morning News: Special!!", "morning news special")
	if got != 1.0 {
		t.Errorf("Expected similarity 1.0 after normalization, got %f", got)
	}
}

func TestTitleSimilarityUnrelated(t *testing.T) {
	got := TitleSimilarity("Morning News Special", "Cooking With Grandma Tonight")
	if got != 0.0 {
		t.Errorf("Expected similarity 0.0 for unrelated titles, got %f", got)
	}
}

func TestTitleSimilarityIgnoresStopWords(t *testing.T) {
	got := TitleSimilarity("Morning News LIVE stream", "Morning News")
	if got != 1.0 {
		t.Errorf("Expected stop words to be ignored, got %f", got)
	}
}

func TestTitleSimilarityHangul(t *testing.T) {
	got := TitleSimilarity("아침 뉴스 특집 라이브", "아침 뉴스 특집")
	if got != 1.0 {
		t.Errorf("Expected Hangul stop word handling, got %f", got)
	}
}

func TestTitleSimilarityPartialOverlap(t *testing.T) {
	// {morning, news} vs {morning, news, weather, update}: 2/4.
	got := TitleSimilarity("Morning News", "Morning News Weather Update")
	if got != 0.5 {
		t.Errorf("Expected similarity 0.5, got %f", got)
	}
}

func TestTitleSimilarityEmptyTitles(t *testing.T) {
	if got := TitleSimilarity("", ""); got != 1.0 {
		t.Errorf("Expected two empty titles to compare as 1.0, got %f", got)
	}
	if got := TitleSimilarity("Morning News", ""); got != 0.0 {
		t.Errorf("Expected empty vs non-empty to compare as 0.0, got %f", got)
	}
}

func TestContainsRestreamKeyword(t *testing.T) {
	tests := []struct {
		title   string
		keyword string
		want    bool
	}{
		{"아침 뉴스 다시보기", "다시보기", true},
		{"Morning News REPLAY", "replay", true},
		{"Grand Finale Encore Presentation", "encore", true},
		{"특집 재방송", "재방송", true},
		{"Morning News Live", "", false},
	}

	for _, tt := range tests {
		keyword, ok := ContainsRestreamKeyword(tt.title)
		if ok != tt.want {
			t.Errorf("ContainsRestreamKeyword(%q) = %v, want %v", tt.title, ok, tt.want)
			continue
		}
		if ok && keyword != tt.keyword {
			t.Errorf("ContainsRestreamKeyword(%q) matched %q, want %q", tt.title, keyword, tt.keyword)
		}
	}
}

func TestStripRestreamKeywords(t *testing.T) {
	got := StripRestreamKeywords("아침 뉴스 다시보기")
	if got != "아침 뉴스" {
		t.Errorf("Expected keyword stripped, got %q", got)
	}

	got = StripRestreamKeywords("Morning News Replay")
	if got != "morning news" {
		t.Errorf("Expected case-insensitive strip, got %q", got)
	}
}

func TestStripRestreamKeywordsLengthChangingFold(t *testing.T) {
	// Lowercasing U+023A grows it from two bytes to three; stripping
	// must not mix offsets between the folded and unfolded strings.
	got := StripRestreamKeywords("ȺȺȺreplay")
	if got != "ⱥⱥⱥ" {
		t.Errorf("Expected keyword stripped after fold, got %q", got)
	}
}
