package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/drivemode/internal/model"
)

func TestEmergencyClientStatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		want    Verdict
		wantErr bool
	}{
		{http.StatusOK, VerdictEmergency, false},
		{http.StatusNoContent, VerdictNotEmergency, false},
		{http.StatusInternalServerError, VerdictUnknown, true},
		{http.StatusBadRequest, VerdictUnknown, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var gotText string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/check-emergency" {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				gotText = body["text"]
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			v, err := NewEmergencyClient(srv.URL+"/", time.Second).Check(context.Background(), "help")
			if v != tt.want {
				t.Errorf("verdict = %v, want %v", v, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if gotText != "help" {
				t.Errorf("text = %q", gotText)
			}
		})
	}
}

func TestEmergencyClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v, err := NewEmergencyClient(url, time.Second).Check(context.Background(), "x")
	if v != VerdictUnknown || err == nil {
		t.Errorf("Check = %v, %v; want unknown with error", v, err)
	}
}

func newTestForwarder(checker EmergencyChecker, policy *SimulatedPolicy) (*Forwarder, *recordingSubmitter, *fakeTones) {
	sub := &recordingSubmitter{}
	tones := &fakeTones{}
	al := NewAlerter(policy, tones, DefaultAlertConfig, testLogger())
	al.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return NewForwarder(checker, sub, al, testLogger()), sub, tones
}

func TestForwarderEmergency(t *testing.T) {
	policy := NewSimulatedPolicy(true, FilterNone)
	f, sub, tones := newTestForwarder(&stubChecker{verdict: VerdictEmergency}, policy)

	v, err := f.Handle(context.Background(), SMS{Sender: "+15551234567", Text: "accident"})
	if err != nil || v != VerdictEmergency {
		t.Fatalf("Handle = %v, %v", v, err)
	}
	if len(sub.missed) != 1 {
		t.Fatalf("missed submissions = %d, want 1", len(sub.missed))
	}
	req := sub.missed[0]
	if req.Number != "+15551234567" || req.Status != model.CallStatusMissed || !req.IsEmergency {
		t.Errorf("request = %+v", req)
	}
	if tones.Count() != 3 {
		t.Errorf("tones = %d, want 3", tones.Count())
	}
	if policy.InterruptionFilter() != FilterNone {
		t.Errorf("filter = %v, want restored to none", policy.InterruptionFilter())
	}
}

func TestForwarderNotEmergency(t *testing.T) {
	for _, checker := range []*stubChecker{
		{verdict: VerdictNotEmergency},
		{verdict: VerdictUnknown, err: errors.New("status 500")},
	} {
		f, sub, tones := newTestForwarder(checker, NewSimulatedPolicy(true, FilterNone))
		if _, err := f.Handle(context.Background(), SMS{Sender: "1", Text: "hi"}); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if len(sub.missed) != 0 || tones.Count() != 0 {
			t.Errorf("verdict %v: submissions = %d, tones = %d", checker.verdict, len(sub.missed), tones.Count())
		}
	}
}

func TestForwarderEmergencyWithoutPolicyAccess(t *testing.T) {
	policy := NewSimulatedPolicy(false, FilterNone)
	f, sub, tones := newTestForwarder(&stubChecker{verdict: VerdictEmergency}, policy)

	if _, err := f.Handle(context.Background(), SMS{Sender: "1", Text: "fire"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sub.missed) != 1 {
		t.Errorf("emergency still reported, got %d submissions", len(sub.missed))
	}
	if tones.Count() != 0 || len(policy.Changes()) != 0 {
		t.Errorf("alert ran without access: tones = %d, changes = %v", tones.Count(), policy.Changes())
	}
}
