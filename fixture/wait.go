package fixture

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	listenerPollInterval = time.Millisecond * 10
	statusPollInterval   = time.Millisecond * 100
)

// WaitForListener blocks until a HEAD request to url succeeds with status 200, or timeout
// elapses.
func WaitForListener(url string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(listenerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("could not detect listener at %s", url)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(url)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == 200 {
					return nil
				}
			}
		}
	}
}

// StatusCheck inspects the body of a successful status response. It returns true if the service
// is ready; returning an error stops polling.
type StatusCheck func(body []byte) (bool, error)

// PollStatus repeatedly issues GET requests to url until check reports that the service is ready,
// or timeout elapses. A dot is written to output for each attempt.
func PollStatus(url string, timeout time.Duration, output io.Writer, check StatusCheck) error {
	if output == nil {
		output = io.Discard
	}
	fmt.Fprintf(output, "Waiting for %s", url)
	defer fmt.Fprintln(output)

	deadline := time.Now().Add(timeout)
	var lastProblem error
	for {
		fmt.Fprintf(output, ".")
		ready, err := queryStatus(url, check)
		if err != nil {
			if _, fatal := err.(fatalStatusError); fatal {
				return err
			}
			lastProblem = err
		} else if ready {
			return nil
		} else {
			lastProblem = fmt.Errorf("%s is not ready yet", url)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timed out after %s, result of last query was: %w", timeout, lastProblem)
		}
		time.Sleep(statusPollInterval)
	}
}

type fatalStatusError struct {
	err error
}

func (e fatalStatusError) Error() string { return e.err.Error() }
func (e fatalStatusError) Unwrap() error { return e.err }

func queryStatus(url string, check StatusCheck) (bool, error) {
	resp, err := http.DefaultClient.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return false, fmt.Errorf("status query returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	ready, err := check(data)
	if err != nil {
		return false, fatalStatusError{err}
	}
	return ready, nil
}
