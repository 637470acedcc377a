package client

// Mutation is a tentative local change confirmed or undone by a server call.
// Capture snapshots whatever Rollback needs to restore the exact prior state.
type Mutation[S any] struct {
	Capture  func() S
	Apply    func()
	Commit   func()
	Rollback func(S)
}

// Run applies the change, performs call, then commits on success or rolls back on error.
// The state is restored before Run returns, so callers never observe a failed change.
func (m Mutation[S]) Run(call func() error) error {
	prior := m.Capture()
	m.Apply()
	if err := call(); err != nil {
		m.Rollback(prior)
		return err
	}
	if m.Commit != nil {
		m.Commit()
	}
	return nil
}
