// Package portal reconstructs the customer-visible view of purchases
// and live download links from an email lookup.
package portal

import (
	"time"

	"github.com/mdwarren/curlshop/internal/model"
	"github.com/mdwarren/curlshop/internal/store"
)

type Service struct {
	orders       *store.OrderStore
	tokens       *store.TokenStore
	tokenTTL     time.Duration
	maxDownloads int
	releaseDate  time.Time
}

func New(orders *store.OrderStore, tokens *store.TokenStore, tokenTTL time.Duration, maxDownloads int, releaseDate time.Time) *Service {
	return &Service{
		orders:       orders,
		tokens:       tokens,
		tokenTTL:     tokenTTL,
		maxDownloads: maxDownloads,
		releaseDate:  releaseDate,
	}
}

// OrderView pairs an order with its active download token, when one is
// available.
type OrderView struct {
	Order model.Order
	Token *model.DownloadToken
}

// Lookup returns the completed orders for an email, each with an active
// token. Before the release date no tokens exist and none are minted;
// after it, a missing or spent token is lazily replaced. The lazy mint
// is the only mutation on this read path.
func (s *Service) Lookup(email string) (bool, []OrderView, error) {
	orders, err := s.orders.CompletedByEmail(email)
	if err != nil {
		return false, nil, err
	}
	if len(orders) == 0 {
		return false, nil, nil
	}

	released := !time.Now().UTC().Before(s.releaseDate)
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		view := OrderView{Order: order}
		if released {
			token, err := s.tokens.GetOrCreateActive(order.ID, s.tokenTTL, s.maxDownloads)
			if err != nil {
				return false, nil, err
			}
			view.Token = token
		}
		views = append(views, view)
	}
	return true, views, nil
}
