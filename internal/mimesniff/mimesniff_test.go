package mimesniff

import "testing"

func TestSniff(t *testing.T) {
	s := New()

	t.Run("infers_css_from_extension", func(t *testing.T) {
		mimeType, ok := s.Sniff("/assets/style.css")
		if !ok {
			t.Fatalf("expected inference to succeed")
		}
		if mimeType != "text/css" {
			t.Fatalf("expected text/css, got %q", mimeType)
		}
	})

	t.Run("no_extension_fails_inference", func(t *testing.T) {
		_, ok := s.Sniff("/assets/noext")
		if ok {
			t.Fatalf("expected inference to fail without an extension")
		}
	})

	t.Run("unknown_extension_fails_inference", func(t *testing.T) {
		_, ok := s.Sniff("/assets/file.zzzznotreal")
		if ok {
			t.Fatalf("expected inference to fail for an unregistered extension")
		}
	})
}
