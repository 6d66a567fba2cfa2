package modules

import (
	"context"
)

// Publisher receives registry change notifications. *events.Bus satisfies it.
type Publisher interface {
	Publish(topic, slug string, data any)
}

// Downloader fetches a remote archive into a local file for link installs.
// *remote.Client satisfies it.
type Downloader interface {
	DownloadFile(ctx context.Context, url string, authToken string, path string) (int64, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}
