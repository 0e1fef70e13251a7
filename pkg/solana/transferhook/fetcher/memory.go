package fetcher

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"

	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
)

// Memory is a deterministic in-memory AccountFetcher.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]solana.AccountInfo
	calls    map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]solana.AccountInfo),
		calls:    make(map[string]int),
	}
}

// SetAccount stores the account state returned for address.
func (m *Memory) SetAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[base58.Encode(address)] = info
}

// SetAccountData stores an account holding data owned by owner.
func (m *Memory) SetAccountData(address, owner ed25519.PublicKey, data []byte) {
	m.SetAccount(address, solana.AccountInfo{
		Data:  data,
		Owner: owner,
	})
}

func (m *Memory) DeleteAccount(address ed25519.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.accounts, base58.Encode(address))
}

// Calls returns the number of fetches made for address.
func (m *Memory) Calls(address ed25519.PublicKey) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.calls[base58.Encode(address)]
}

func (m *Memory) FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := base58.Encode(address)
	m.calls[key]++

	info, ok := m.accounts[key]
	if !ok {
		return nil, transferhook.ErrAccountNotFound
	}

	return &solana.AccountInfo{
		Data:       append([]byte(nil), info.Data...),
		Owner:      append(ed25519.PublicKey(nil), info.Owner...),
		Lamports:   info.Lamports,
		Executable: info.Executable,
	}, nil
}
