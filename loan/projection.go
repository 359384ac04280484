/*
projection.go - Client-visible projection cache

PURPOSE:
  Two explicit layers:
    - Store:      authoritative, source of truth
    - Projection: read-mostly copy per lender, may be optimistic or stale

  A payment is applied to the projection before its writes start so that
  readers see it immediately. Success leaves the projection as is. A
  first-step failure restores the pre-image. A later failure replaces the
  lender's whole projection with a fresh read (Service.Resync).

CONCURRENCY:
  Safe for concurrent use. Values handed out are clones.
*/
package loan

import "sync"

type Projection struct {
	mu    sync.RWMutex
	loans map[LenderID][]Loan
}

func NewProjection() *Projection {
	return &Projection{loans: make(map[LenderID][]Loan)}
}

// Replace discards the lender's projection and installs loans.
func (p *Projection) Replace(lender LenderID, loans []Loan) {
	cp := make([]Loan, len(loans))
	for i, l := range loans {
		cp[i] = l.Clone()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loans[lender] = cp
}

// Loaded reports whether the lender has been read at least once.
func (p *Projection) Loaded(lender LenderID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.loans[lender]
	return ok
}

func (p *Projection) Loans(lender LenderID) []Loan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	src := p.loans[lender]
	out := make([]Loan, len(src))
	for i, l := range src {
		out[i] = l.Clone()
	}
	return out
}

func (p *Projection) Loan(lender LenderID, id LoanID) (Loan, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, l := range p.loans[lender] {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return Loan{}, false
}

// Put installs ln, replacing the loan with the same ID or prepending it
// (newest first). It returns the previous value, if any.
func (p *Projection) Put(ln Loan) (Loan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.loans[ln.LenderID]
	for i := range list {
		if list[i].ID == ln.ID {
			prev := list[i]
			list[i] = ln.Clone()
			return prev, true
		}
	}
	p.loans[ln.LenderID] = append([]Loan{ln.Clone()}, list...)
	return Loan{}, false
}

// Remove drops one loan from the lender's projection.
func (p *Projection) Remove(lender LenderID, id LoanID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.loans[lender]
	for i := range list {
		if list[i].ID == id {
			p.loans[lender] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}
