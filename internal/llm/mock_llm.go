package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	args := m.Called(ctx, apiKey, prompt)
	return args.String(0), args.Error(1)
}
