package meme

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(url string) *Imgflip {
	g := NewImgflip(ImgflipConfig{URL: url, Username: "u", Password: "p", Timeout: time.Second})
	g.pick = func(int) int { return 0 }
	return g
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "181913649", r.PostForm.Get("template_id"))
		assert.Equal(t, "exams are", r.PostForm.Get("text0"))
		assert.Equal(t, "killing me", r.PostForm.Get("text1"))
		assert.Equal(t, "u", r.PostForm.Get("username"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"url":"https://i.imgflip.com/abc.jpg"}}`))
	}))
	defer srv.Close()

	url, err := newTestGenerator(srv.URL).Generate(context.Background(), "exams are killing me")
	require.NoError(t, err)
	assert.Equal(t, "https://i.imgflip.com/abc.jpg", url)
}

func TestGenerateAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error_message":"bad credentials"}`))
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "hello there")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "bad credentials", upstream.Reason)
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL)
	for i := 0; i < 8; i++ {
		_, err := g.Generate(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrUpstream)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestNoopAlwaysFails(t *testing.T) {
	_, err := Noop{}.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestSplitCaption(t *testing.T) {
	top, bottom := SplitCaption("one")
	assert.Equal(t, "", top)
	assert.Equal(t, "one", bottom)

	top, bottom = SplitCaption("a b c d e f g h i j k l m n o")
	assert.Equal(t, "a b c d e f...", top)
	assert.Equal(t, "h i j k l m...", bottom)
}
