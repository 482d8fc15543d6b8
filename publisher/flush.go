package publisher

// flushPublisher pushes on the caller's goroutine. It has no worker.
type flushPublisher[T any] struct {
	*base[T]
}

// Update pushes immediately and returns the push result.
func (p *flushPublisher[T]) Update() error {
	return p.push()
}

// Release cancels any push still in progress on another goroutine.
func (p *flushPublisher[T]) Release() {
	p.releaseOnce.Do(p.close)
}
