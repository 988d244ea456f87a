package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMyMemoryProvider_Translate(t *testing.T) {
	t.Parallel()

	var gotQuery, gotLangpair string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotLangpair = r.URL.Query().Get("langpair")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responseStatus": 200,
			"responseData": map[string]interface{}{
				"translatedText": "Hello",
				"match":          0.98,
			},
		})
	}))
	defer server.Close()

	p := NewMyMemoryProvider(server.URL, server.Client())
	translation, confidence, err := p.Translate(context.Background(), "こんにちは", "ja", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if translation != "Hello" {
		t.Errorf("translation = %q", translation)
	}
	if confidence != 0.98 {
		t.Errorf("confidence = %v, want 0.98", confidence)
	}
	if gotQuery != "こんにちは" {
		t.Errorf("q = %q", gotQuery)
	}
	if gotLangpair != "ja|en" {
		t.Errorf("langpair = %q", gotLangpair)
	}
}

func TestMyMemoryProvider_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responseStatus": 429,
			"responseData":   map[string]interface{}{},
		})
	}))
	defer server.Close()

	p := NewMyMemoryProvider(server.URL, server.Client())
	if _, _, err := p.Translate(context.Background(), "駅", "ja", "en"); err == nil {
		t.Error("expected error for non-200 responseStatus")
	}
}

func TestMyMemoryProvider_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewMyMemoryProvider(server.URL, server.Client())
	if _, _, err := p.Translate(context.Background(), "駅", "ja", "en"); err == nil {
		t.Error("expected error for HTTP 503")
	}
}

func TestLibreProvider_Translate(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"translatedText": "Exit"})
	}))
	defer server.Close()

	p := NewLibreProvider(server.URL, server.Client())
	translation, confidence, err := p.Translate(context.Background(), "出口", "ja", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if translation != "Exit" {
		t.Errorf("translation = %q", translation)
	}
	if confidence != 0.9 {
		t.Errorf("confidence = %v, want fixed 0.9", confidence)
	}
	if gotBody["q"] != "出口" || gotBody["source"] != "ja" || gotBody["target"] != "en" || gotBody["format"] != "text" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestLibreProvider_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewLibreProvider(server.URL, server.Client())
	if _, _, err := p.Translate(context.Background(), "出口", "ja", "en"); err == nil {
		t.Error("expected error for HTTP 400")
	}
}

func TestDictionaryProvider(t *testing.T) {
	t.Parallel()

	p := NewDictionaryProvider("", map[string]map[string]string{
		"en": {"こんにちは": "Hello"},
	})
	if p.ID() != "dictionary" {
		t.Errorf("default id = %q", p.ID())
	}

	translation, confidence, err := p.Translate(context.Background(), "こんにちは", "ja", "en")
	if err != nil || translation != "Hello" || confidence != 1.0 {
		t.Errorf("got (%q, %v, %v)", translation, confidence, err)
	}

	if _, _, err := p.Translate(context.Background(), "未知", "ja", "en"); err == nil {
		t.Error("expected miss for unknown text")
	}
}
