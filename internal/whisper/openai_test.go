package whisper

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispersubs/whispersubs/internal/errors"
)

const testBaseURL = "http://whisper.test/v1"

const verboseResponse = `{
  "task": "transcribe",
  "language": "spanish",
  "duration": 3.0,
  "text": "hola que tal",
  "segments": [
    {"id": 0, "start": 0.0, "end": 1.2, "text": " hola "},
    {"id": 1, "start": 1.2, "end": 1.4, "text": "   "},
    {"id": 2, "start": 1.4, "end": 2.8, "text": "que tal"}
  ]
}`

func newMockModel(t *testing.T, timeout time.Duration) (Model, *httpmock.MockTransport) {
	t.Helper()

	mock := httpmock.NewMockTransport()
	loader := &OpenAILoader{
		APIKey:     "test-key",
		BaseURL:    testBaseURL + "/",
		Timeout:    timeout,
		SampleRate: 16000,
		HTTPClient: &http.Client{Transport: mock},
	}
	m, err := loader.Load(t.Context(), "whisper-1", Device{UseGPU: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, mock
}

// multipartFields returns the text fields of a multipart request
func multipartFields(t *testing.T, req *http.Request) map[string]string {
	t.Helper()

	_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)

	fields := map[string]string{}
	mr := multipart.NewReader(req.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		if part.FileName() != "" {
			fields["file"] = part.FileName()
			fields["file_header"] = string(data[:4])
			continue
		}
		fields[part.FormName()] = string(data)
	}
	return fields
}

func TestOpenAITranscription(t *testing.T) {
	t.Parallel()

	m, mock := newMockModel(t, 0)

	var fields map[string]string
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/audio/transcriptions",
		func(req *http.Request) (*http.Response, error) {
			fields = multipartFields(t, req)
			assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, verboseResponse), nil
		})

	err := m.Process(t.Context(), make([]float32, 16000), Params{Language: "es"})
	require.NoError(t, err)

	assert.Equal(t, "whisper-1", fields["model"])
	assert.Equal(t, "es", fields["language"])
	assert.Equal(t, "verbose_json", fields["response_format"])
	assert.Equal(t, uploadName, fields["file"])
	assert.Equal(t, "RIFF", fields["file_header"])

	require.Equal(t, 3, m.SegmentCount())
	assert.Equal(t, 1200*time.Millisecond, m.Segment(0).End)
	assert.Equal(t, "hola que tal", JoinSegments(m))
	assert.Equal(t, Segment{}, m.Segment(7))
}

func TestOpenAIAutoLanguageAndTranslate(t *testing.T) {
	t.Parallel()

	m, mock := newMockModel(t, 0)

	var transcribeFields map[string]string
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/audio/transcriptions",
		func(req *http.Request) (*http.Response, error) {
			transcribeFields = multipartFields(t, req)
			return httpmock.NewStringResponse(http.StatusOK, verboseResponse), nil
		})
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/audio/translations",
		httpmock.NewStringResponder(http.StatusOK, `{"text": "hello there", "segments": []}`))

	require.NoError(t, m.Process(t.Context(), make([]float32, 800), Params{Language: "auto"}))
	_, hasLanguage := transcribeFields["language"]
	assert.False(t, hasLanguage, "auto must let the server detect the language")

	require.NoError(t, m.Process(t.Context(), make([]float32, 800), Params{Language: "es", Translate: true}))
	require.Equal(t, 1, m.SegmentCount(), "plain text falls back to a single segment")
	assert.Equal(t, "hello there", JoinSegments(m))
	assert.Equal(t, 50*time.Millisecond, m.Segment(0).End)

	info := mock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+testBaseURL+"/audio/translations"])
}

func TestOpenAIServerError(t *testing.T) {
	t.Parallel()

	m, mock := newMockModel(t, 0)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/audio/transcriptions",
		httpmock.NewStringResponder(http.StatusInternalServerError,
			`{"error": {"message": "model overloaded", "type": "server_error"}}`))

	err := m.Process(t.Context(), make([]float32, 1600), Params{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelInference))
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, 0, m.SegmentCount(), "failed pass leaves no stale segments")
}

func TestOpenAITimeout(t *testing.T) {
	t.Parallel()

	m, mock := newMockModel(t, 20*time.Millisecond)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/audio/transcriptions",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	err := m.Process(t.Context(), make([]float32, 1600), Params{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
}

func TestOpenAIProcessHonorsCancel(t *testing.T) {
	t.Parallel()

	m, mock := newMockModel(t, 0)
	mock.RegisterResponder(http.MethodPost, testBaseURL+"/audio/transcriptions",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := m.Process(ctx, make([]float32, 1600), Params{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestOpenAIEmptyAndClosed(t *testing.T) {
	t.Parallel()

	m, mock := newMockModel(t, 0)
	require.NoError(t, m.Process(t.Context(), nil, Params{}))
	assert.Equal(t, 0, mock.GetTotalCallCount(), "empty chunk is not uploaded")

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Process(t.Context(), make([]float32, 10), Params{}), ErrModelClosed)
}

func TestOpenAILoaderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		loader OpenAILoader
		model  string
	}{
		{"empty model", OpenAILoader{APIKey: "k", SampleRate: 16000}, " "},
		{"no rate", OpenAILoader{APIKey: "k"}, "whisper-1"},
		{"hosted api without key", OpenAILoader{SampleRate: 16000}, "whisper-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.loader.Load(t.Context(), tt.model, Device{})
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
		})
	}

	// local servers usually need no key
	local := OpenAILoader{BaseURL: "http://localhost:8080/v1", SampleRate: 16000}
	m, err := local.Load(t.Context(), "large-v3", Device{})
	require.NoError(t, err)
	require.NoError(t, m.Close())
}

func TestJoinSegmentsTrims(t *testing.T) {
	t.Parallel()

	m := &openAIModel{segments: []Segment{{Text: "  a"}, {Text: ""}, {Text: "b  "}, {Text: strings.Repeat(" ", 3)}}}
	assert.Equal(t, "a b", JoinSegments(m))
	assert.Empty(t, JoinSegments(&silentModel{}))
}
