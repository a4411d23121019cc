package commons

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Helsinki_Central_railway_station", "Helsinki Central railway station"},
		{"Category:Helsinki Central railway station", "Helsinki Central railway station"},
		{"category:  Suomenlinna ", "Suomenlinna"},
		{"Churches   in  Helsinki", "Churches in Helsinki"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCategoryIsStable(t *testing.T) {
	// Two spellings of one category must produce one cache key.
	a := NormalizeCategory("Category:Helsinki_Central_railway_station")
	b := NormalizeCategory("Helsinki  Central railway station")
	if a != b {
		t.Errorf("%q != %q", a, b)
	}
}

func TestPetscanCategoryValue(t *testing.T) {
	if got := PetscanCategoryValue("Category:Churches in Helsinki"); got != "Churches_in_Helsinki" {
		t.Errorf("PetscanCategoryValue = %q", got)
	}
}

func TestCategoryURL(t *testing.T) {
	got := CategoryURL("Churches in Helsinki")
	want := "https://commons.wikimedia.org/wiki/Category:Churches_in_Helsinki"
	if got != want {
		t.Errorf("CategoryURL = %q, want %q", got, want)
	}
}

func TestFileAndThumbURL(t *testing.T) {
	file := FileURL("File:Helsinki Cathedral.jpg")
	want := "https://commons.wikimedia.org/wiki/Special:FilePath/Helsinki_Cathedral.jpg"
	if file != want {
		t.Errorf("FileURL = %q, want %q", file, want)
	}
	thumb := ThumbURL("Helsinki Cathedral.jpg", 0)
	if thumb != want+"?width=320" {
		t.Errorf("ThumbURL = %q", thumb)
	}
}

func TestResolveImage(t *testing.T) {
	t.Run("bare filename", func(t *testing.T) {
		imageURL, thumbURL, name := ResolveImage("Helsinki Cathedral.jpg", 640)
		if name != "Helsinki Cathedral.jpg" {
			t.Errorf("name = %q", name)
		}
		if imageURL == "" || thumbURL != imageURL+"?width=640" {
			t.Errorf("urls = %q, %q", imageURL, thumbURL)
		}
	})

	t.Run("filepath url", func(t *testing.T) {
		in := "https://commons.wikimedia.org/wiki/Special:FilePath/Helsinki%20Cathedral.jpg"
		imageURL, thumbURL, name := ResolveImage(in, 0)
		if imageURL != in {
			t.Errorf("imageURL = %q", imageURL)
		}
		if thumbURL != in+"?width=320" {
			t.Errorf("thumbURL = %q", thumbURL)
		}
		if name != "Helsinki Cathedral.jpg" {
			t.Errorf("name = %q", name)
		}
	})

	t.Run("other url passes through", func(t *testing.T) {
		in := "https://example.org/images/photo.jpg"
		imageURL, thumbURL, name := ResolveImage(in, 320)
		if imageURL != in || thumbURL != in {
			t.Errorf("urls = %q, %q", imageURL, thumbURL)
		}
		if name != "photo.jpg" {
			t.Errorf("name = %q", name)
		}
	})

	t.Run("empty", func(t *testing.T) {
		imageURL, thumbURL, name := ResolveImage("  ", 320)
		if imageURL != "" || thumbURL != "" || name != "" {
			t.Error("empty input must resolve to nothing")
		}
	})
}
