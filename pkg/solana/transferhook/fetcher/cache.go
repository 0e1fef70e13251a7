package fetcher

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/transfer-hook-client/pkg/cache"
	"github.com/code-payments/transfer-hook-client/pkg/solana"
	"github.com/code-payments/transfer-hook-client/pkg/solana/transferhook"
	"github.com/code-payments/transfer-hook-client/pkg/sync"
)

const (
	// accountInfoOverhead approximates the cost of an entry beyond its data.
	accountInfoOverhead = 2 * ed25519.PublicKeySize

	fetchLockStripes = 64
)

type cachingFetcher struct {
	log   *logrus.Entry
	next  transferhook.AccountFetcher
	cache cache.Cache
	locks *sync.StripedLock
}

// NewCachingFetcher returns an AccountFetcher that serves repeated lookups
// from an LRU cache weighted by account data size. Missing accounts and
// errors are never cached. Concurrent misses for the same address result in
// a single fetch.
func NewCachingFetcher(next transferhook.AccountFetcher, budget int) transferhook.AccountFetcher {
	return &cachingFetcher{
		log:   logrus.StandardLogger().WithField("type", "transferhook/fetcher/cache"),
		next:  next,
		cache: cache.NewCache(budget),
		locks: sync.NewStripedLock(fetchLockStripes),
	}
}

func (f *cachingFetcher) FetchAccount(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	key := base58.Encode(address)

	if cached, ok := f.cache.Retrieve(key); ok {
		return copyAccountInfo(cached.(*solana.AccountInfo)), nil
	}

	unlock := f.locks.Lock(address)
	defer unlock()

	// Another caller may have populated the entry while we waited.
	if cached, ok := f.cache.Retrieve(key); ok {
		return copyAccountInfo(cached.(*solana.AccountInfo)), nil
	}

	info, err := f.next.FetchAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, transferhook.ErrAccountNotFound
	}

	err = f.cache.Insert(key, copyAccountInfo(info), len(info.Data)+accountInfoOverhead)
	if err != nil && err != cache.ErrKeyExists {
		f.log.WithError(err).WithField("account", key).Warn("failed to cache account")
	}

	return info, nil
}

func copyAccountInfo(info *solana.AccountInfo) *solana.AccountInfo {
	return &solana.AccountInfo{
		Data:       append([]byte(nil), info.Data...),
		Owner:      append(ed25519.PublicKey(nil), info.Owner...),
		Lamports:   info.Lamports,
		Executable: info.Executable,
	}
}
