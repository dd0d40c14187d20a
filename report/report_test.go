package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestStdout_EncodesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	err := s.Send(context.Background(), Scan{ID: "scan_1", Trigger: "initial", Items: 3, Masked: 1})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var env struct {
		Type string `json:"type"`
		Data Scan   `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != "scan" {
		t.Errorf("envelope type: got %q, want %q", env.Type, "scan")
	}
	if env.Data.Masked != 1 {
		t.Errorf("masked: got %d, want 1", env.Data.Masked)
	}
}

func TestRouter_FanOutContinuesPastFailure(t *testing.T) {
	failing := NewCallback(func(context.Context, Scan) error {
		return errors.New("boom")
	}, nil)

	var delivered int
	counting := NewCallback(func(context.Context, Scan) error {
		delivered++
		return nil
	}, nil)

	r := NewRouter(nil, failing, counting)
	err := r.Send(context.Background(), Scan{ID: "scan_1"})
	if err == nil {
		t.Error("router swallowed the sink error")
	}
	if delivered != 1 {
		t.Errorf("second sink deliveries: got %d, want 1", delivered)
	}
}

func TestCallback_NilHandlers(t *testing.T) {
	c := NewCallback(nil, nil)
	if err := c.Send(context.Background(), Scan{}); err != nil {
		t.Errorf("Send with nil handler: %v", err)
	}
	if err := c.SendMask(context.Background(), Mask{}); err != nil {
		t.Errorf("SendMask with nil handler: %v", err)
	}
}
