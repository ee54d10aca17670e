package control

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type mockIoT struct {
	input *iotdataplane.PublishInput
	err   error
}

func (m *mockIoT) Publish(_ context.Context, in *iotdataplane.PublishInput, _ ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error) {
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	return &iotdataplane.PublishOutput{}, nil
}

func TestIoTPublish(t *testing.T) {

	tt := []struct {
		name string
		err  error
		msg  string
	}{
		{name: "happy"},
		{name: "unhappy", err: errors.New("forbidden"), msg: "failed to publish to AWS/brightness/control: forbidden"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {

			m := &mockIoT{err: tc.err}
			p := NewIoTPublisher(m, "AWS/brightness/control", 1)

			err := p.Publish(context.Background(), Command{ScreenBrightness: 75})
			if tc.msg != "" {
				if err == nil || !strings.Contains(err.Error(), tc.msg) {
					t.Fatalf("expected error %q, got: %v", tc.msg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := aws.ToString(m.input.Topic); got != "AWS/brightness/control" {
				t.Errorf("wrong topic: %v", got)
			}
			if m.input.Qos != 1 {
				t.Errorf("expected qos 1, got %v", m.input.Qos)
			}
			if got := string(m.input.Payload); got != `{"screenBrightness":75}` {
				t.Errorf("wrong payload: %v", got)
			}
		})
	}
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, complete bool) *fakeToken {
	tk := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(tk.done)
	}
	return tk
}

func (tk *fakeToken) Wait() bool {
	<-tk.done
	return true
}

func (tk *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-tk.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (tk *fakeToken) Done() <-chan struct{} { return tk.done }

func (tk *fakeToken) Error() error { return tk.err }

type mockMQTT struct {
	mqtt.Client
	token    *fakeToken
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (m *mockMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.topic = topic
	m.qos = qos
	m.retained = retained
	m.payload, _ = payload.([]byte)
	return m.token
}

func TestMQTTPublish(t *testing.T) {

	tt := []struct {
		name     string
		token    *fakeToken
		cancel   bool
		msg      string
		expected string
	}{
		{name: "happy", token: newToken(nil, true), expected: `{"screenBrightness":30}`},
		{name: "broker error", token: newToken(errors.New("not authorized"), true), msg: "not authorized"},
		{name: "timeout", token: newToken(nil, false), msg: "timed out"},
		{name: "cancelled", token: newToken(nil, false), cancel: true, msg: "context canceled"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {

			m := &mockMQTT{token: tc.token}
			p := NewMQTTPublisher(m, "AWS/brightness/control", 1, 50*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancel {
				cancel()
				p.timeout = time.Minute
			}

			err := p.Publish(ctx, Command{ScreenBrightness: 30})
			if tc.msg != "" {
				if err == nil || !strings.Contains(err.Error(), tc.msg) {
					t.Fatalf("expected error %q, got: %v", tc.msg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if m.topic != "AWS/brightness/control" || m.qos != 1 || m.retained {
				t.Errorf("wrong publish options: topic %v, qos %v, retained %v", m.topic, m.qos, m.retained)
			}
			if string(m.payload) != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, string(m.payload))
			}
		})
	}
}
