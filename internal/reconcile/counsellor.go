package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

// RegisterCounsellors stores a counsellor pair. No payment is involved.
func (e *Engine) RegisterCounsellors(ctx context.Context, draft CounsellorDraft) (*models.CounsellorPair, error) {
	if verr := e.check(draft); verr != nil {
		return nil, verr
	}
	pair := &models.CounsellorPair{
		Counsellor1:    buildCounsellor(draft.Counsellor1),
		Counsellor2:    buildCounsellor(draft.Counsellor2),
		PairingRequest: strings.TrimSpace(draft.PairingRequest),
		Notes:          strings.TrimSpace(draft.Notes),
	}
	if err := e.store.CreateCounsellorPair(ctx, pair); err != nil {
		return nil, fmt.Errorf("create counsellor pair: %w", err)
	}
	logger.Infow("counsellors_registered", "counsellor_pair_id", pair.ID)
	e.afterCounsellorsRegistered(ctx, pair)
	return pair, nil
}
