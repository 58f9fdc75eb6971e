// Package nonce serializes transaction submission for a single account.
//
// Every state-changing transaction in the application flows through one
// Manager per operator key. Reservations are handed out strictly in order
// and a failed submission returns its nonce to the front of the line, so
// concurrent callers can never produce nonce gaps or collisions.
package nonce

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/logger"
)

// PendingNonceReader is the chain-side dependency, satisfied by
// *ethclient.Client.
type PendingNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Manager hands out nonces for one account, one in-flight transaction at a
// time. Callers Acquire a reservation, send their transaction, then either
// Commit (nonce consumed) or Release (nonce reusable).
type Manager struct {
	client  PendingNonceReader
	account common.Address
	log     logger.LoggerInterface

	mu     sync.Mutex
	sem    chan struct{} // capacity 1: serializes send windows
	next   uint64
	synced bool
}

// NewManager creates a Manager for account. The first Acquire syncs the
// starting nonce from the node's pending pool.
func NewManager(client PendingNonceReader, account common.Address, log logger.LoggerInterface) *Manager {
	return &Manager{
		client:  client,
		account: account,
		log:     log,
		sem:     make(chan struct{}, 1),
	}
}

// Reservation is a held nonce. Exactly one of Commit or Release must be
// called.
type Reservation struct {
	m     *Manager
	nonce uint64
	done  bool
}

// Nonce returns the reserved value.
func (r *Reservation) Nonce() uint64 { return r.nonce }

// BigNonce returns the reserved value as *big.Int for transaction building.
func (r *Reservation) BigNonce() *big.Int { return new(big.Int).SetUint64(r.nonce) }

// Acquire blocks until the previous reservation has settled, then returns
// the next nonce. It honors ctx while waiting.
func (m *Manager) Acquire(ctx context.Context) (*Reservation, error) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synced {
		n, err := m.client.PendingNonceAt(ctx, m.account)
		if err != nil {
			<-m.sem
			return nil, apperror.New(apperror.CodeNonceSyncFailed,
				apperror.WithContext(m.account.Hex()), apperror.WithCause(err))
		}
		m.next = n
		m.synced = true
		m.log.Debug(ctx, "nonce synced from node", "account", m.account.Hex(), "nonce", n)
	}

	return &Reservation{m: m, nonce: m.next}, nil
}

// Commit marks the reservation's transaction as accepted by the node. The
// next Acquire gets nonce+1.
func (r *Reservation) Commit() {
	if r.done {
		return
	}
	r.done = true

	r.m.mu.Lock()
	r.m.next = r.nonce + 1
	r.m.mu.Unlock()
	<-r.m.sem
}

// Release returns the nonce unused, typically after a failed send. The next
// Acquire gets the same nonce again.
func (r *Reservation) Release() {
	if r.done {
		return
	}
	r.done = true
	<-r.m.sem
}

// Invalidate drops local state so the next Acquire re-syncs from the node.
// Used after "nonce too low" responses, which mean another party sent from
// this account.
func (r *Reservation) Invalidate() {
	if r.done {
		return
	}
	r.done = true

	r.m.mu.Lock()
	r.m.synced = false
	r.m.mu.Unlock()
	<-r.m.sem
}
