package memory

import (
	"context"
	"time"

	domain "github.com/zynvolt/storefront/internal/domain/payment"
)

type paymentRepo struct{ t *txHandle }

func (r *paymentRepo) Insert(_ context.Context, p *domain.Payment) error {
	if p == nil || p.ID == "" {
		return domain.ErrNotFound
	}
	return r.t.run(func(st *state) error {
		clone := *p
		st.payments[p.ID] = &clone
		st.paymentSeq = append(st.paymentSeq, p.ID)
		return nil
	})
}

func (r *paymentRepo) FindByProviderOrderRef(_ context.Context, ref string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.t.run(func(st *state) error {
		for _, p := range st.payments {
			if p.ProviderOrderRef == ref && ref != "" {
				clone := *p
				out = &clone
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *paymentRepo) FindLatestByOrder(_ context.Context, orderID string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.t.run(func(st *state) error {
		// paymentSeq preserves insertion order; scan back for the latest.
		for i := len(st.paymentSeq) - 1; i >= 0; i-- {
			p := st.payments[st.paymentSeq[i]]
			if p != nil && p.OrderID == orderID {
				clone := *p
				out = &clone
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *paymentRepo) MarkSucceeded(_ context.Context, id, providerPaymentRef string) error {
	return r.t.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.ProviderPaymentRef = providerPaymentRef
		p.Status = domain.StatusSuccess
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *paymentRepo) MarkFailed(_ context.Context, id string) error {
	return r.t.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.Status = domain.StatusFailed
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}
