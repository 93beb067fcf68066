package captcha

import (
	"bufio"
	"io"
)

// LineSignal emits one value per line read from r (typically os.Stdin) and
// closes the channel at EOF. At most one unread line is buffered.
func LineSignal(r io.Reader) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch
}
