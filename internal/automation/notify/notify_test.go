package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradepilot/pkg/flow"
)

type recordingSink struct {
	got []Message
	err error
}

func (r *recordingSink) Notify(_ context.Context, msg Message) error {
	r.got = append(r.got, msg)
	return r.err
}

func TestMulti_DeliversToAllSinks(t *testing.T) {
	failing := &recordingSink{err: errors.New("down")}
	ok := &recordingSink{}
	m := Multi{NewLogSink(zap.NewNop()), failing, nil, ok}

	err := m.Notify(context.Background(), Message{PipelineID: "p1", Text: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	require.Len(t, ok.got, 1)
	assert.Equal(t, "ping", ok.got[0].Text)
}

func TestDiscordNotifier(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL)
	err := d.Notify(context.Background(), Message{PipelineID: "p1", ActionID: "a1", Text: "ping", Level: "error", SentAt: time.Now()})
	require.NoError(t, err)

	embeds := body["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "ping", embed["description"])
	assert.Equal(t, float64(colorError), embed["color"])
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Notify(context.Background(), Message{Text: "x"})
	assert.EqualError(t, err, "discord returned status: 429")
}

func TestDiscordNotifier_Disabled(t *testing.T) {
	assert.NoError(t, NewDiscordNotifier("").Notify(context.Background(), Message{Text: "x"}))
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	_, err := NewKafkaPublisher(nil, nil)
	require.Error(t, err)

	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topicByEvent: map[string]string{EventRunCompleted: "runs"}}

	require.NoError(t, p.Notify(context.Background(), Message{PipelineID: "p1", Text: "ping"}))
	require.NoError(t, p.PublishRun(context.Background(), RunEvent{
		PipelineID: "p1",
		Entry:      flow.HistoryEntry{Status: flow.RunSuccess},
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, EventNotification, w.msgs[0].Topic)
	assert.Equal(t, "runs", w.msgs[1].Topic)
	assert.Equal(t, []byte("p1"), w.msgs[1].Key)

	var ev RunEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, flow.RunSuccess, ev.Entry.Status)
}
