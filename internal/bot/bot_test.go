package bot

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/virex/internal/admission"
	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/fetcher"
	"github.com/wapuda/virex/internal/pending"
	"github.com/wapuda/virex/internal/queue"
	"github.com/wapuda/virex/internal/store"
)

// fakeTelegram answers every API call with an empty success payload so
// handler flows run without the network.
type fakeTelegram struct{}

func (fakeTelegram) Do(*http.Request) (*http.Response, error) {
	body := `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"virex","username":"virex_bot"}}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

// fakeYtdlp writes a shell stand-in for yt-dlp and returns a fetcher
// running it instead of the real binary.
func fakeYtdlp(t *testing.T, script string) *fetcher.Fetcher {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return fetcher.New(path, 5*time.Second, time.Second, 100, zerolog.Nop())
}

func newTestBot(t *testing.T, workers, queueCap, gateCap int, fet *fetcher.Fetcher) (*Bot, *store.Store, *queue.Queue) {
	t.Helper()
	api, err := tgbotapi.NewBotAPIWithClient("42:test", tgbotapi.APIEndpoint, fakeTelegram{})
	require.NoError(t, err)

	st := store.New(t.TempDir(), nil, zerolog.Nop())
	q := queue.New(queueCap, workers, time.Minute, nil, zerolog.Nop())
	t.Cleanup(q.Close)

	b := New(Deps{
		API:     api,
		Config:  &config.Config{MaxFileSizeMB: 100, MaxDurationSeconds: 120},
		Store:   st,
		Gate:    admission.NewGate(st, q.Len, gateCap, nil),
		Queue:   q,
		Pending: pending.NewTable(nil),
		Fetcher: fet,
		Log:     zerolog.Nop(),
		TempDir: t.TempDir(),
	})
	return b, st, q
}

func TestProcessingFlagSetBeforeAck(t *testing.T) {
	b, st, q := newTestBot(t, 0, 8, 8, fakeYtdlp(t, "exit 1"))
	id := b.pending.Put(pending.Item{Kind: pending.KindURL, URL: "https://youtube.com/watch?v=a"})

	b.startProcessing(1, 1, "alice", id)

	u := st.Snapshot(1)
	assert.True(t, u.Processing, "flag is up before any worker ran")
	assert.Equal(t, "https://youtube.com/watch?v=a", u.CurrentFileID)

	require.True(t, q.Cancel(1))
	require.Eventually(t, func() bool {
		u := st.Snapshot(1)
		return !u.Processing && u.CurrentFileID == ""
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFastFailingJobLeavesCleanRecord(t *testing.T) {
	b, st, q := newTestBot(t, 1, 8, 8, fakeYtdlp(t, "exit 1"))
	id := b.pending.Put(pending.Item{Kind: pending.KindURL, URL: "https://youtube.com/watch?v=b"})

	b.startProcessing(1, 1, "alice", id)

	require.Eventually(t, func() bool {
		u := st.Snapshot(1)
		return !u.Processing && u.CurrentFileID == "" && !q.Busy(1)
	}, 5*time.Second, 10*time.Millisecond, "record must not stay stuck in processing")
}

func TestSubmitErrorClearsProcessing(t *testing.T) {
	b, st, _ := newTestBot(t, 0, 1, 8, fakeYtdlp(t, "exit 1"))
	first := b.pending.Put(pending.Item{Kind: pending.KindURL, URL: "https://youtube.com/watch?v=c"})
	b.startProcessing(1, 1, "alice", first)
	require.True(t, st.Snapshot(1).Processing)

	second := b.pending.Put(pending.Item{Kind: pending.KindURL, URL: "https://youtube.com/watch?v=d"})
	b.startProcessing(2, 2, "bob", second)

	u := st.Snapshot(2)
	assert.False(t, u.Processing, "queue-full submit must not leave the flag up")
	assert.Empty(t, u.CurrentFileID)
}

func TestURLJobEnforcesPlanSizeCap(t *testing.T) {
	// The stand-in produces a sparse 60 MB file, over the free plan's
	// 50 MB cap but under the instance-wide one.
	script := `while [ $# -gt 0 ]; do if [ "$1" = "-o" ]; then out="$2"; fi; shift; done
dd if=/dev/zero of="$out" bs=1048576 seek=60 count=0 2>/dev/null`
	b, _, _ := newTestBot(t, 0, 8, 8, fakeYtdlp(t, script))

	task := &queue.Task{ID: "t1", UserID: 1, ChatID: 1}
	item := pending.Item{Kind: pending.KindURL, URL: "https://youtube.com/watch?v=e"}
	run := b.jobRunner(task, item, *domain.NewUserRecord(1))

	err := run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errTooBig)
}

func TestSizeCapClampedByInstanceLimit(t *testing.T) {
	b, _, _ := newTestBot(t, 0, 8, 8, nil)
	assert.Equal(t, int64(50), b.sizeCapMB(domain.PlanFree))
	assert.Equal(t, int64(100), b.sizeCapMB(domain.PlanVIP))
	b.cfg.MaxFileSizeMB = 20
	assert.Equal(t, int64(20), b.sizeCapMB(domain.PlanPremium))
}
