package sqlite

import "testing"

func TestDocumentCache(t *testing.T) {
	e := newTestEnv(t)
	url := "https://docs.example.com/big-packet.pdf"

	if _, _, ok, err := e.Store.GetCachedDocument(e.Ctx, url); err != nil || ok {
		t.Fatalf("cold cache: ok=%v err=%v, want miss", ok, err)
	}

	if err := e.Store.PutCachedDocument(e.Ctx, url, "extracted packet text", 180); err != nil {
		t.Fatalf("PutCachedDocument failed: %v", err)
	}

	text, pages, ok, err := e.Store.GetCachedDocument(e.Ctx, url)
	if err != nil || !ok {
		t.Fatalf("warm cache: ok=%v err=%v, want hit", ok, err)
	}
	if text != "extracted packet text" || pages != 180 {
		t.Errorf("cached (%q, %d), want original text and page count", text, pages)
	}

	// Hits accumulate; re-extraction refreshes text but keeps the counter.
	if _, _, _, err := e.Store.GetCachedDocument(e.Ctx, url); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if err := e.Store.PutCachedDocument(e.Ctx, url, "re-extracted text", 181); err != nil {
		t.Fatalf("re-put failed: %v", err)
	}

	var hits int
	if err := e.Store.UnderlyingDB().QueryRowContext(e.Ctx, `
		SELECT hit_count FROM document_cache WHERE url = ?
	`, url).Scan(&hits); err != nil {
		t.Fatalf("failed to read hit_count: %v", err)
	}
	if hits != 2 {
		t.Errorf("hit_count = %d after re-put, want 2 preserved", hits)
	}

	text, pages, _, err = e.Store.GetCachedDocument(e.Ctx, url)
	if err != nil {
		t.Fatalf("read after re-put failed: %v", err)
	}
	if text != "re-extracted text" || pages != 181 {
		t.Errorf("re-put did not refresh: (%q, %d)", text, pages)
	}
}
