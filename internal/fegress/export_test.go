package fegress

// Retries reports how many retries the in-flight frame has used.
func (s *Scheduler) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// HasFrame reports whether the outbound slot is populated.
func (s *Scheduler) HasFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot != nil
}

// StateName exposes the coordinator state for assertions.
func (s *Scheduler) StateName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}
