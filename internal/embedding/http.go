package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"compendium/internal/errs"
)

// httpEmbedder calls a generic OpenAI-compatible embeddings endpoint,
// sending the whole batch in one request.
type httpEmbedder struct {
	cfg    Config
	client *http.Client
}

func newHTTPEmbedder(cfg Config) *httpEmbedder {
	path := cfg.Path
	if path == "" {
		path = "/v1/embeddings"
	}
	cfg.Path = path
	return &httpEmbedder{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

func (e *httpEmbedder) Name() string   { return e.cfg.Model }
func (e *httpEmbedder) Dimension() int { return e.cfg.Dim }

type httpEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type httpEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *httpEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(httpEmbedRequest{Input: texts, Model: e.cfg.Model})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "marshal embedding request", err)
	}

	url := e.cfg.BaseURL + e.cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderUnavailable, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindProviderUnavailable, fmt.Sprintf("embedding endpoint returned status %d", resp.StatusCode))
	}

	var parsed httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.Wrap(errs.KindProviderContractViolation, "decode embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, errs.New(errs.KindProviderContractViolation, fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.New(errs.KindProviderContractViolation, "embedding response index out of range")
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
