package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
)

func fakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI("sk-test", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestOpenAI_Complete(t *testing.T) {
	var got chatRequest
	p := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`))
	})

	out, err := p.Complete(context.Background(), Request{System: "sys", User: "usr", MaxTokens: 500, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)
	assert.Equal(t, DefaultOpenAIModel, got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "usr", got.Messages[1].Content)
}

func TestOpenAI_StreamInOrder(t *testing.T) {
	p := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Hel", "lo, ", "", "world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var tokens []string
	err := p.Stream(context.Background(), Request{User: "q"}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo, ", "world"}, tokens)
	assert.Equal(t, "Hello, world", strings.Join(tokens, ""))
}

func TestOpenAI_StreamEmitErrorStops(t *testing.T) {
	p := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"t%d\"}}]}\n\n", i)
		}
	})
	stop := errors.New("stop")
	n := 0
	err := p.Stream(context.Background(), Request{}, func(string) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, n)
}

func TestOpenAI_StatusErrorsAreClassified(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   apperr.UpstreamKind
		is     error
	}{
		{429, `{"error":{"message":"Rate limit reached for gpt-4o-mini"}}`, apperr.KindRateLimit, ErrRateLimited},
		{401, `{"error":{"message":"Incorrect API key provided"}}`, apperr.KindAuth, ErrAuth},
		{500, `oops`, apperr.KindUnknown, nil},
	}
	for _, c := range cases {
		t.Run(http.StatusText(c.status), func(t *testing.T) {
			p := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			})
			_, err := p.Complete(context.Background(), Request{})
			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, c.status, apiErr.Status)
			assert.Equal(t, c.kind, apperr.Classify(err))
			if c.is != nil {
				assert.ErrorIs(t, err, c.is)
			}
		})
	}
}

func TestOpenAI_NotConfigured(t *testing.T) {
	p := NewOpenAI("")
	_, err := p.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
