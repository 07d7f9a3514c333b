package alert

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type sinkStub struct {
	err   error
	sent  []Alert
	calls int
}

func (s *sinkStub) Send(ctx context.Context, a Alert) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, a)
	return nil
}

type AlertSuite struct {
	suite.Suite
}

func TestAlertSuite(t *testing.T) {
	suite.Run(t, new(AlertSuite))
}

func (s *AlertSuite) alert(severity Severity) Alert {
	return Alert{
		Source:    "compliance",
		Severity:  severity,
		Summary:   "checks failed",
		Details:   map[string]string{"controls": "CTL-AUD-001"},
		Timestamp: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *AlertSuite) TestFanout() {
	s.Run("delivers to every sink", func() {
		a, b := &sinkStub{}, &sinkStub{}
		f := NewFanout(a, nil, b)

		s.NoError(f.Send(context.Background(), s.alert(SeverityHigh)))
		s.Len(a.sent, 1)
		s.Len(b.sent, 1)
	})

	s.Run("a failing sink does not block the others", func() {
		bad := &sinkStub{err: errors.New("broker down")}
		good := &sinkStub{}
		f := NewFanout(bad, good)

		err := f.Send(context.Background(), s.alert(SeverityCritical))
		s.ErrorContains(err, "broker down")
		s.Len(good.sent, 1)
	})

	s.Run("errors from multiple sinks are joined", func() {
		first := &sinkStub{err: errors.New("first failure")}
		second := &sinkStub{err: errors.New("second failure")}
		f := NewFanout(first, second)

		err := f.Send(context.Background(), s.alert(SeverityLow))
		s.ErrorContains(err, "first failure")
		s.ErrorContains(err, "second failure")
	})

	s.Run("empty fanout is a no-op", func() {
		f := NewFanout(nil, nil)
		s.NoError(f.Send(context.Background(), s.alert(SeverityLow)))
	})
}

func (s *AlertSuite) TestKafkaAlerterRequiresAProducer() {
	s.Nil(NewKafkaAlerter(nil, "vigil.alerts"))
}

func (s *AlertSuite) TestLogAlerterLevels() {
	cases := []struct {
		severity Severity
		level    string
	}{
		{SeverityCritical, "ERROR"},
		{SeverityHigh, "ERROR"},
		{SeverityMedium, "WARN"},
		{SeverityLow, "INFO"},
	}

	for _, tc := range cases {
		s.Run(string(tc.severity), func() {
			var buf bytes.Buffer
			alerter := NewLogAlerter(slog.New(slog.NewTextHandler(&buf, nil)))

			s.NoError(alerter.Send(context.Background(), s.alert(tc.severity)))
			out := buf.String()
			s.Contains(out, "level="+tc.level)
			s.Contains(out, "summary=\"checks failed\"")
			s.Contains(out, "detail_controls=CTL-AUD-001")
		})
	}
}
