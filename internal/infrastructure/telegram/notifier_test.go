package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinanceCollector/internal/retry"
)

func TestPublishPostsMessage(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		texts = append(texts, r.PostForm.Get("text"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "TOKEN", "42")
	require.NoError(t, n.Publish(context.Background(), "collection finished: 47 rows"))
	assert.Equal(t, []string{"collection finished: 47 rows"}, texts)
}

func TestPublishSplitsLongMessages(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.LessOrEqual(t, len([]rune(r.PostForm.Get("text"))), maxMessageSize)
		count++
	}))
	defer srv.Close()

	line := strings.Repeat("가", 99) + "\n"
	n := NewNotifier(srv.URL, "TOKEN", "42")
	require.NoError(t, n.Publish(context.Background(), strings.Repeat(line, 100)))
	assert.Equal(t, 3, count)
}

func TestPublishThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL, "TOKEN", "42").Publish(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, retry.IsThrottle(err))
	delay, ok := retry.SuggestedDelay(err)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, delay)
}

func TestPublishMisconfigured(t *testing.T) {
	assert.Error(t, NewNotifier("", "", "").Publish(context.Background(), "hi"))
}
