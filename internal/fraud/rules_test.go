package fraud

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"vigil/internal/platform/config"
)

func testFraudConfig() config.Fraud {
	return config.Fraud{
		VelocityWindow:     10 * time.Minute,
		VelocityThreshold:  5,
		HighValueThreshold: 1000,
		BlockThreshold:     50,
		ReviewThreshold:    30,
	}
}

type RulesSuite struct {
	suite.Suite
	now time.Time
}

func TestRulesSuite(t *testing.T) {
	suite.Run(t, new(RulesSuite))
}

func (s *RulesSuite) SetupTest() {
	s.now = time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)
}

func (s *RulesSuite) recentTxs(n int, amount int64) []Transaction {
	txs := make([]Transaction, n)
	for i := range txs {
		txs[i] = Transaction{
			Identity:  "payer@example.com",
			Amount:    decimal.NewFromInt(amount),
			Timestamp: s.now.Add(-time.Duration(i+1) * time.Minute),
		}
	}
	return txs
}

func (s *RulesSuite) TestScore() {
	s.Run("quiet history approves with zero score", func() {
		got := score(scoreInput{
			tx:  Transaction{Identity: "a", Amount: decimal.NewFromInt(50)},
			now: s.now,
			cfg: testFraudConfig(),
		})
		s.Zero(got.RiskScore)
		s.Empty(got.Flags)
		s.Equal(DecisionApproved, got.Decision)
		s.False(got.RequiresManualReview)
	})

	s.Run("velocity plus high value plus duplicate blocks at 75", func() {
		recent := s.recentTxs(4, 200)
		recent = append(recent, Transaction{
			Identity:  "payer@example.com",
			Amount:    decimal.NewFromInt(1500),
			Timestamp: s.now.Add(-5 * time.Minute),
		})

		got := score(scoreInput{
			tx:     Transaction{Identity: "payer@example.com", Amount: decimal.NewFromInt(1500)},
			recent: recent,
			now:    s.now,
			cfg:    testFraudConfig(),
		})
		s.Equal(75, got.RiskScore)
		s.Equal(DecisionBlocked, got.Decision)
		s.ElementsMatch([]string{FlagHighVelocity, FlagHighValue, FlagDuplicate}, got.Flags)
		s.False(got.RequiresManualReview)
	})

	s.Run("transactions outside the window do not count toward velocity", func() {
		old := s.recentTxs(5, 200)
		for i := range old {
			old[i].Timestamp = s.now.Add(-time.Hour)
		}

		got := score(scoreInput{
			tx:     Transaction{Identity: "a", Amount: decimal.NewFromInt(10)},
			recent: old,
			now:    s.now,
			cfg:    testFraudConfig(),
		})
		s.NotContains(got.Flags, FlagHighVelocity)
	})

	s.Run("amount at the threshold is not high value", func() {
		got := score(scoreInput{
			tx:  Transaction{Identity: "a", Amount: decimal.NewFromInt(1000)},
			now: s.now,
			cfg: testFraudConfig(),
		})
		s.NotContains(got.Flags, FlagHighValue)
	})

	s.Run("anonymizer source scores 40 and lands in the review band", func() {
		got := score(scoreInput{
			tx:  Transaction{Identity: "a", Amount: decimal.NewFromInt(10), SourceIP: "185.220.101.4"},
			now: s.now,
			cfg: testFraudConfig(),
		})
		s.Equal(40, got.RiskScore)
		s.Equal(DecisionApproved, got.Decision)
		s.True(got.RequiresManualReview)
		s.Contains(got.Flags, FlagSuspiciousIP)
	})

	s.Run("score of exactly 30 stays below the review band", func() {
		got := score(scoreInput{
			tx:     Transaction{Identity: "a", Amount: decimal.NewFromInt(10)},
			recent: s.recentTxs(5, 999),
			now:    s.now,
			cfg:    testFraudConfig(),
		})
		s.Equal(30, got.RiskScore)
		s.False(got.RequiresManualReview)
	})

	s.Run("identical inputs always produce the identical assessment", func() {
		in := scoreInput{
			tx:     Transaction{Identity: "a", Amount: decimal.NewFromInt(1500), SourceIP: "185.220.101.4"},
			recent: s.recentTxs(5, 1500),
			now:    s.now,
			cfg:    testFraudConfig(),
		}
		first := score(in)
		second := score(in)
		s.Equal(first.RiskScore, second.RiskScore)
		s.Equal(first.Decision, second.Decision)
		s.Equal(first.Flags, second.Flags)
	})
}

func (s *RulesSuite) TestSuspiciousSource() {
	s.Run("anonymizer CIDR matches", func() {
		s.True(SuspiciousSource("185.220.101.4"))
		s.True(SuspiciousSource("199.87.154.255"))
	})

	s.Run("ordinary address does not match", func() {
		s.False(SuspiciousSource("203.0.113.10"))
	})

	s.Run("hostname markers match case-insensitively", func() {
		s.True(SuspiciousSource("exit.TOR.example.net"))
		s.True(SuspiciousSource("eu-proxy-3.example.com"))
		s.False(SuspiciousSource("shop.example.com"))
	})

	s.Run("empty source does not match", func() {
		s.False(SuspiciousSource(""))
	})
}
