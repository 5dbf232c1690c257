package util

// WaitError blocks until an error arrives on errChan or done closes. An error that is
// already queued when done closes is still returned, so a worker that threw and then exited
// is never mistaken for a clean shutdown.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
	}
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
