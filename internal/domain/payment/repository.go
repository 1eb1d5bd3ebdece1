package payment

import "context"

type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	FindByProviderOrderRef(ctx context.Context, ref string) (*Payment, error)
	FindLatestByOrder(ctx context.Context, orderID string) (*Payment, error)
	// MarkSucceeded records the provider payment reference and flips the
	// status to Success.
	MarkSucceeded(ctx context.Context, id, providerPaymentRef string) error
	MarkFailed(ctx context.Context, id string) error
}
