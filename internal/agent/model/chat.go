package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ChatModel is the single seam to the hosted completion service. One call
// per turn; implementations own sampling parameters and usage logging.
type ChatModel interface {
	Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error)

	// ModelName reports the configured model identifier, used for pricing
	// lookup and logging.
	ModelName() string
}
