// HTTP translation providers. All speak plain JSON over HTTPS with no
// auth; any provider may be unreachable or return a non-success status,
// in which case the chain falls through to the next one.

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
)

const maxProviderBody = 1 << 20 // 1MB response bound

// MyMemoryProvider queries the MyMemory translated.net API.
type MyMemoryProvider struct {
	baseURL string
	client  *http.Client
}

// NewMyMemoryProvider creates the provider. An empty base URL selects
// the public endpoint.
func NewMyMemoryProvider(baseURL string, client *http.Client) *MyMemoryProvider {
	if baseURL == "" {
		baseURL = "https://api.mymemory.translated.net"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &MyMemoryProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *MyMemoryProvider) ID() string {
	return "mymemory"
}

// Translate issues a GET request. MyMemory reports confidence as a
// match ratio in [0,1]; it is passed through unrecalibrated.
func (p *MyMemoryProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, float64, error) {
	endpoint := fmt.Sprintf("%s/get?q=%s&langpair=%s",
		p.baseURL,
		url.QueryEscape(text),
		url.QueryEscape(sourceLang+"|"+targetLang))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, apperrors.NewNetworkFailedError(p.ID(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return "", 0, apperrors.NewNetworkFailedError(p.ID(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("mymemory http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed struct {
		ResponseStatus int `json:"responseStatus"`
		ResponseData   struct {
			TranslatedText string  `json:"translatedText"`
			Match          float64 `json:"match"`
		} `json:"responseData"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("decode mymemory response: %w", err)
	}
	if parsed.ResponseStatus != 200 {
		return "", 0, fmt.Errorf("mymemory status %d", parsed.ResponseStatus)
	}

	return parsed.ResponseData.TranslatedText, parsed.ResponseData.Match, nil
}

// LibreProvider posts to a LibreTranslate-compatible endpoint.
type LibreProvider struct {
	baseURL string
	client  *http.Client
}

// NewLibreProvider creates the provider for the given instance URL.
func NewLibreProvider(baseURL string, client *http.Client) *LibreProvider {
	if baseURL == "" {
		baseURL = "https://libretranslate.de"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &LibreProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *LibreProvider) ID() string {
	return "libretranslate"
}

// Translate issues a POST request. LibreTranslate returns no confidence;
// a fixed 0.9 is reported, consistent with the provider id it carries.
func (p *LibreProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, float64, error) {
	payload, err := json.Marshal(map[string]string{
		"q":      text,
		"source": sourceLang,
		"target": targetLang,
		"format": "text",
	})
	if err != nil {
		return "", 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, apperrors.NewNetworkFailedError(p.ID(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return "", 0, apperrors.NewNetworkFailedError(p.ID(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("libretranslate http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("decode libretranslate response: %w", err)
	}

	return parsed.TranslatedText, 0.9, nil
}

// DictionaryProvider serves translations from a fixed table. Used in
// development and tests where outbound HTTP is unavailable.
type DictionaryProvider struct {
	id string
	// dictionary maps targetLang -> sourceText -> translatedText.
	dictionary map[string]map[string]string
}

// NewDictionaryProvider creates an offline provider with the given table.
func NewDictionaryProvider(id string, dictionary map[string]map[string]string) *DictionaryProvider {
	if id == "" {
		id = "dictionary"
	}
	return &DictionaryProvider{id: id, dictionary: dictionary}
}

func (p *DictionaryProvider) ID() string {
	return p.id
}

func (p *DictionaryProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if langDict, ok := p.dictionary[targetLang]; ok {
		if translated, ok := langDict[text]; ok {
			return translated, 1.0, nil
		}
	}
	return "", 0, fmt.Errorf("dictionary has no %s translation for %q", targetLang, text)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
