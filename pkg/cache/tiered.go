package cache

import "context"

// Tiered layers a fast front cache over a persistent back. Reads fall
// through to the back and repopulate the front; writes land in both.
type Tiered struct {
	front Cacher
	back  Cacher
}

func NewTiered(front, back Cacher) *Tiered {
	return &Tiered{front: front, back: back}
}

func (t *Tiered) GetCache(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := t.front.GetCache(ctx, key); ok {
		return val, true
	}
	val, ok := t.back.GetCache(ctx, key)
	if !ok {
		return nil, false
	}
	// Repopulation is best effort; the back already holds the value.
	_ = t.front.SetCache(ctx, key, val)
	return val, true
}

func (t *Tiered) SetCache(ctx context.Context, key string, val []byte) error {
	err := t.back.SetCache(ctx, key, val)
	if ferr := t.front.SetCache(ctx, key, val); err == nil {
		err = ferr
	}
	return err
}
