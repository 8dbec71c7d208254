package core

// CorruptHolding drops id from the projection and flags it as diverged, the
// state a partly applied commit leaves behind.
func CorruptHolding(p *Projection, id string, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.holdings, id)
	p.diverged = cause
}
