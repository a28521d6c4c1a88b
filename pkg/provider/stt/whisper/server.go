package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/casevox/casevox/pkg/provider/stt"
)

// Compile-time assertion that ServerTranscriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*ServerTranscriber)(nil)

// ServerTranscriber implements stt.Transcriber against a running
// whisper-server binary, which exposes batch inference at POST /inference.
// Safe for concurrent use.
type ServerTranscriber struct {
	serverURL  string
	language   string
	model      string
	httpClient *http.Client
}

// ServerOption is a functional option for configuring a ServerTranscriber.
type ServerOption func(*ServerTranscriber)

// WithServerLanguage sets the language hint forwarded to the server.
// Defaults to "en".
func WithServerLanguage(lang string) ServerOption {
	return func(t *ServerTranscriber) { t.language = lang }
}

// WithServerModel sets the model identifier forwarded to the server. When
// empty the server uses whichever model it was started with.
func WithServerModel(model string) ServerOption {
	return func(t *ServerTranscriber) { t.model = model }
}

// WithServerTimeout sets a per-request HTTP timeout. Long recordings need a
// generous value; the default is 5 minutes.
func WithServerTimeout(d time.Duration) ServerOption {
	return func(t *ServerTranscriber) { t.httpClient.Timeout = d }
}

// NewServer creates a ServerTranscriber for the whisper-server at serverURL
// (e.g., "http://localhost:8080").
func NewServer(serverURL string, opts ...ServerOption) (*ServerTranscriber, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisper: serverURL must not be empty")
	}
	t := &ServerTranscriber{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe implements stt.Transcriber. The audio is encoded as a WAV file
// and POSTed to the server's /inference endpoint as multipart/form-data.
func (t *ServerTranscriber) Transcribe(ctx context.Context, audio stt.Audio) (*stt.Transcript, error) {
	if len(audio.Samples) == 0 {
		return &stt.Transcript{Language: t.language}, nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(stt.EncodeWAV(audio)); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return &stt.Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: t.language,
	}, nil
}
