package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavewatch/wavewatch/pkg/event"
)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, n *Notification) error {
	r.sent = append(r.sent, *n)
	return r.err
}

var alertNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func scoreResult(trendID string, waveScore float64) event.ScoreResult {
	return event.ScoreResult{
		TrendID:    trendID,
		Platform:   event.PlatformVideo,
		Category:   "tech",
		WaveScore:  waveScore,
		Confidence: 0.8,
		ComputedAt: alertNow,
	}
}

func TestNotifyScoresThreshold(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager([]Notifier{rec}, 80, time.Hour)

	results := []event.ScoreResult{
		scoreResult("video:low", 60),
		scoreResult("video:high", 91),
	}
	titles := map[string]string{"video:high": "big launch"}

	count, err := m.NotifyScores(context.Background(), results, titles, alertNow)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, rec.sent, 1)
	require.Len(t, rec.sent[0].Items, 1)
	assert.Equal(t, "video:high", rec.sent[0].Items[0].TrendID)
	assert.Equal(t, "big launch", rec.sent[0].Items[0].Title)
}

func TestNotifyScoresCooldown(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager([]Notifier{rec}, 80, time.Hour)

	results := []event.ScoreResult{scoreResult("video:hot", 95)}

	count, err := m.NotifyScores(context.Background(), results, nil, alertNow)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Still hot ten minutes later, but inside the cooldown.
	count, err = m.NotifyScores(context.Background(), results, nil, alertNow.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, rec.sent, 1)

	// Cooldown elapsed, alert fires again.
	count, err = m.NotifyScores(context.Background(), results, nil, alertNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBroadcastContinuesPastFailures(t *testing.T) {
	broken := &recordingNotifier{err: errors.New("webhook down")}
	healthy := &recordingNotifier{}
	m := NewManager([]Notifier{broken, healthy}, 80, time.Hour)

	_, err := m.NotifyScores(context.Background(),
		[]event.ScoreResult{scoreResult("video:hot", 95)}, nil, alertNow)
	assert.Error(t, err)
	assert.Len(t, healthy.sent, 1)
}

func TestNotifyScoresNoNotifiers(t *testing.T) {
	m := NewManager(nil, 80, time.Hour)
	count, err := m.NotifyScores(context.Background(),
		[]event.ScoreResult{scoreResult("video:hot", 95)}, nil, alertNow)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWebhookSignsPayload(t *testing.T) {
	secret := "topsecret"

	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, secret)
	n := &Notification{Title: "1 waves breaking", Items: []Item{{TrendID: "video:v1", WaveScore: 90}}}
	require.NoError(t, wh.Send(context.Background(), n))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)

	var decoded Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "video:v1", decoded.Items[0].TrendID)
}

func TestWebhookRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	err := wh.Send(context.Background(), &Notification{Title: "t"})
	assert.Error(t, err)
}
