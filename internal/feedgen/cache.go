package feedgen

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry はフィード1件分のレンダリング済みバイト列とそのメタデータ。
type cacheEntry struct {
	payload     []byte
	fingerprint string
	builtAt     time.Time
}

// Cache はフィードIDごとにレンダリング済みフィードを保持する。
// 無効化は削除ではなくタイムスタンプで行い、無効化時刻より古い
// エントリは決して返さない。
type Cache struct {
	mu            sync.RWMutex
	entries       map[string]cacheEntry
	invalidatedAt map[string]time.Time
}

// NewCache はCacheの新しいインスタンスを生成する。
func NewCache() *Cache {
	return &Cache{
		entries:       make(map[string]cacheEntry),
		invalidatedAt: make(map[string]time.Time),
	}
}

// Get はfeedIDに対応する有効なキャッシュエントリを返す。
// エントリが存在しないか、最後の無効化より前に構築されたものは
// ヒットとみなさない。
func (c *Cache) Get(feedID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[feedID]
	if !ok {
		return nil, false
	}
	if inv, ok := c.invalidatedAt[feedID]; ok && !entry.builtAt.After(inv) {
		return nil, false
	}

	// 呼び出し側の変更からキャッシュを守るためコピーを返す
	out := make([]byte, len(entry.payload))
	copy(out, entry.payload)
	return out, true
}

// Put はレンダリング済みフィードをキャッシュに格納する。
func (c *Cache) Put(feedID string, payload []byte) {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[feedID] = cacheEntry{
		payload:     stored,
		fingerprint: Fingerprint(payload),
		builtAt:     time.Now(),
	}
}

// Invalidate はfeedIDのキャッシュを無効化する。以後、この時点より前に
// 構築されたバイト列は提供されない。
func (c *Cache) Invalidate(feedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatedAt[feedID] = time.Now()
}

// InvalidatedAt はfeedIDの最終無効化時刻を返す。未無効化の場合はゼロ値。
func (c *Cache) InvalidatedAt(feedID string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.invalidatedAt[feedID]
}

// Fingerprint はレンダリング結果の内容ハッシュを返す。
// エピソードの変更がバイト列に反映されたかの検証に使う。
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// FingerprintOf はfeedIDのキャッシュ済みエントリのフィンガープリントを返す。
func (c *Cache) FingerprintOf(feedID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[feedID]
	if !ok {
		return "", false
	}
	return entry.fingerprint, true
}
