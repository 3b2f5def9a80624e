package services

import (
	"fmt"
	"strings"
	"sync"

	"casino-wager-system/models"

	"github.com/shopspring/decimal"
)

// ledgerEntry is one recorded leg, kept per reference so tests can assert
// the kind and amount a settlement wrote.
type ledgerEntry struct {
	account string
	kind    string
	amount  decimal.Decimal
}

// fakeLedger is an in-memory Ledger with the same atomicity and
// reference-dedup semantics as the postgres implementation.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	entries  map[string]ledgerEntry
}

func newFakeLedger(seed map[string]float64) *fakeLedger {
	l := &fakeLedger{
		balances: make(map[string]decimal.Decimal),
		entries:  make(map[string]ledgerEntry),
	}
	for id, bal := range seed {
		l.balances[id] = decimal.NewFromFloat(bal)
	}
	return l
}

func (l *fakeLedger) RecordTransaction(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[reference]; ok {
		return false, nil
	}
	l.entries[reference] = ledgerEntry{account: accountID, kind: kind, amount: amount}
	return true, nil
}

func (l *fakeLedger) CreditOnce(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[reference]; ok {
		return false, nil
	}
	bal, ok := l.balances[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	l.entries[reference] = ledgerEntry{account: accountID, kind: kind, amount: amount}
	l.balances[accountID] = bal.Add(amount)
	return true, nil
}

func (l *fakeLedger) DebitOnce(accountID, kind string, amount decimal.Decimal, reference, description string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[reference]; ok {
		return false, nil
	}
	bal, ok := l.balances[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	if bal.LessThan(amount) {
		return false, ErrInsufficientFunds
	}
	l.entries[reference] = ledgerEntry{account: accountID, kind: kind, amount: amount.Neg()}
	l.balances[accountID] = bal.Sub(amount)
	return true, nil
}

func (l *fakeLedger) Transfer(fromID, toID, kind string, amount decimal.Decimal, reference, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[reference+":out"]; ok {
		return nil // already applied
	}
	fromBal, ok := l.balances[fromID]
	if !ok {
		return ErrAccountNotFound
	}
	toBal, ok := l.balances[toID]
	if !ok {
		return ErrAccountNotFound
	}
	if fromBal.LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.entries[reference+":out"] = ledgerEntry{account: fromID, kind: kind, amount: amount.Neg()}
	l.entries[reference+":in"] = ledgerEntry{account: toID, kind: kind, amount: amount}
	l.balances[fromID] = fromBal.Sub(amount)
	l.balances[toID] = toBal.Add(amount)
	return nil
}

func (l *fakeLedger) balance(accountID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}

// total sums every balance, for conservation checks.
func (l *fakeLedger) total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := decimal.Zero
	for _, bal := range l.balances {
		sum = sum.Add(bal)
	}
	return sum
}

// entryKind returns the kind logged under a reference, empty if none.
func (l *fakeLedger) entryKind(reference string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[reference].kind
}

// entryBySuffix finds a logged leg by reference suffix, for legs keyed on
// a generated ID.
func (l *fakeLedger) entryBySuffix(suffix string) (ledgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ref, e := range l.entries {
		if strings.HasSuffix(ref, suffix) {
			return e, true
		}
	}
	return ledgerEntry{}, false
}

// fakeJournal is an in-memory SettlementJournal.
type fakeJournal struct {
	mu      sync.Mutex
	records map[string]*models.GameRecord

	failRecord bool
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{records: make(map[string]*models.GameRecord)}
}

func (j *fakeJournal) Record(rec *models.GameRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failRecord {
		return fmt.Errorf("journal unavailable")
	}
	if _, ok := j.records[rec.ChallengeID]; ok {
		return nil
	}
	cp := *rec
	j.records[rec.ChallengeID] = &cp
	return nil
}

func (j *fakeJournal) MarkSettled(challengeID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[challengeID]
	if !ok || rec.Settled {
		return false, nil
	}
	rec.Settled = true
	return true, nil
}

func (j *fakeJournal) Unsettled(limit int) ([]models.GameRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.GameRecord
	for _, rec := range j.records {
		if !rec.Settled {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeNotifier records everything it is handed.
type fakeNotifier struct {
	mu      sync.Mutex
	prompts []string
	reports []string
}

func (n *fakeNotifier) Prompt(chatContext, msg string, options []string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts = append(n.prompts, msg)
	return chatContext, nil
}

func (n *fakeNotifier) Report(chatContext, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, msg)
}

func (n *fakeNotifier) reportCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

// scriptedOutcomes replays a fixed sequence of rolls.
type scriptedOutcomes struct {
	mu    sync.Mutex
	rolls []int
}

func (s *scriptedOutcomes) Next(contestType models.ContestType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rolls) == 0 {
		return 0, fmt.Errorf("scripted outcomes exhausted")
	}
	roll := s.rolls[0]
	s.rolls = s.rolls[1:]
	return roll, nil
}

// countingProgression counts one-shot settlement callbacks.
type countingProgression struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProgression) RecordSettlement(rec *models.GameRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
}

func (p *countingProgression) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
