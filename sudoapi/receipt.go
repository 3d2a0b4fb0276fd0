package sudoapi

import (
	"context"

	"github.com/FundProjects/fundnova"
)

func (s *BaseAPI) Receipt(ctx context.Context, donationID int) (*fundnova.Receipt, error) {
	receipt, err := s.db.Receipt(ctx, donationID)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
