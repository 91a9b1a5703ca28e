package device

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/warthog618/sms"
	"github.com/warthog618/sms/encoding/pdumode"
	"github.com/warthog618/sms/encoding/tpdu"
)

// SMS is one decoded incoming text message.
type SMS struct {
	Sender string `json:"sender" yaml:"sender"`
	Text   string `json:"text" yaml:"text"`
}

// PDUDecoder decodes one received SMS PDU.
type PDUDecoder interface {
	Decode(pdu []byte) (SMS, error)
}

// GSMDecoder decodes 3GPP SMS-DELIVER PDUs that carry the SMSC address prefix.
type GSMDecoder struct{}

func (GSMDecoder) Decode(pdu []byte) (SMS, error) {
	p, err := pdumode.UnmarshalBinary(pdu)
	if err != nil {
		return SMS{}, fmt.Errorf("unmarshal pdu: %w", err)
	}
	tp, err := sms.Unmarshal(p.TPDU, sms.AsMT)
	if err != nil {
		return SMS{}, fmt.Errorf("unmarshal tpdu: %w", err)
	}
	text, err := sms.Decode([]*tpdu.TPDU{tp})
	if err != nil {
		return SMS{}, fmt.Errorf("decode user data: %w", err)
	}
	return SMS{Sender: tp.OA.Number(), Text: string(text)}, nil
}

// DecodeHexPDU parses a hex-encoded PDU as found in modem logs.
func DecodeHexPDU(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode hex pdu: %w", err)
	}
	return b, nil
}

// ClassifySubmitter queues a message for emergency classification.
type ClassifySubmitter interface {
	SubmitClassify(ctx context.Context, msg SMS) error
}

// SMSWatcher handles received SMS broadcasts.
type SMSWatcher struct {
	decoder    PDUDecoder
	classify   ClassifySubmitter
	correlator *Correlator
	bridge     Bridge
	now        func() int64
	logger     *slog.Logger
}

func NewSMSWatcher(dec PDUDecoder, classify ClassifySubmitter, c *Correlator, bridge Bridge, logger *slog.Logger) *SMSWatcher {
	return &SMSWatcher{
		decoder:    dec,
		classify:   classify,
		correlator: c,
		bridge:     bridge,
		now:        nowMillis,
		logger:     logger.With("component", "sms_watcher"),
	}
}

// HandlePDUs decodes each PDU independently. Undecodable PDUs are skipped.
func (w *SMSWatcher) HandlePDUs(ctx context.Context, pdus [][]byte) error {
	msgs := make([]SMS, 0, len(pdus))
	for i, pdu := range pdus {
		msg, err := w.decoder.Decode(pdu)
		if err != nil {
			w.logger.Warn("skipping undecodable pdu", "index", i, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return w.HandleMessages(ctx, msgs)
}

// HandleMessages queues every message for classification and checks whether
// its sender follows up the last missed call.
func (w *SMSWatcher) HandleMessages(ctx context.Context, msgs []SMS) error {
	for _, msg := range msgs {
		w.logger.Debug("sms received", "sender", msg.Sender, "length", len(msg.Text))

		if err := w.classify.SubmitClassify(ctx, msg); err != nil {
			return err
		}

		matched, err := w.correlator.Match(msg.Sender)
		if err != nil {
			w.logger.Error("correlate sms", "sender", msg.Sender, "error", err)
		}
		if !matched {
			continue
		}

		w.logger.Info("sms follows missed call, flagging emergency", "sender", msg.Sender)
		if err := w.bridge.Dispatch(ctx, NewMissedCallEvent(msg.Sender, true, w.now())); err != nil {
			w.logger.Error("dispatch emergency call event", "sender", msg.Sender, "error", err)
		}
	}
	return nil
}
