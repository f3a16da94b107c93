package fetch

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of Fetcher using testify/mock.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (string, bool) {
	args := m.Called(ctx, rawURL)
	return args.String(0), args.Bool(1)
}
