package model

// Metrics receives download lifecycle callbacks. Hosts wire their own
// collector; the library ships none.
type Metrics interface {
	DownloadStarted(url string)
	DownloadFinished(url string, bytes int64, err error)
}

type nopMetrics struct{}

func (nopMetrics) DownloadStarted(string)                {}
func (nopMetrics) DownloadFinished(string, int64, error) {}
